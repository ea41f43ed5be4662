package providers

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/fossiltrack/config"
)

// RegistryRecord is one scraped company row for a ship
type RegistryRecord struct {
	CompanyName string     `json:"company_name" validate:"required"`
	Address     string     `json:"address"`
	ProviderIMO string     `json:"provider_imo"`
	Role        string     `json:"role" validate:"required,oneof=insurer owner manager"`
	DateFrom    *time.Time `json:"date_from"`
}

// RegistryProfile is the full scrape result for one ship
type RegistryProfile struct {
	IMO      string           `json:"imo"`
	FlagISO2 string           `json:"flag_iso2"`
	Records  []RegistryRecord `json:"records"`
}

// RegistryScraper pulls ship profiles from the vessel registry behind a
// pool of authenticated accounts. A locked-out account is benched for the
// rest of the run; when every account is benched the scraper reports
// ErrExhausted so the orchestrator backs off.
type RegistryScraper struct {
	client  *client
	baseURL string

	mu       sync.Mutex
	accounts []string
	benched  map[string]bool
	next     int
}

// NewRegistryScraper creates a registry scraper over the configured accounts
func NewRegistryScraper(cfg config.ProvidersConfig) (*RegistryScraper, error) {
	if len(cfg.RegistryAccounts) == 0 {
		return nil, errors.New("no registry accounts configured")
	}
	return &RegistryScraper{
		client:   newClient(cfg),
		baseURL:  cfg.RegistryURL,
		accounts: cfg.RegistryAccounts,
		benched:  make(map[string]bool),
	}, nil
}

// FetchProfile scrapes one ship, rotating accounts on lockout
func (s *RegistryScraper) FetchProfile(ctx context.Context, imo string) (*RegistryProfile, error) {
	for {
		account, ok := s.pick()
		if !ok {
			return nil, errors.Wrap(ErrExhausted, "all registry accounts locked out")
		}

		profile, err := s.fetchWith(ctx, account, imo)
		if err == nil {
			return profile, nil
		}
		if errors.Is(err, ErrExhausted) {
			log.Warn().Str("account", account).Msg("Registry account locked out, rotating")
			s.bench(account)
			continue
		}
		return nil, err
	}
}

func (s *RegistryScraper) fetchWith(ctx context.Context, account, imo string) (*RegistryProfile, error) {
	u := fmt.Sprintf("%s/vessels/%s", s.baseURL, url.PathEscape(imo))
	headers := map[string]string{"Authorization": "Bearer " + account}

	var profile RegistryProfile
	if err := s.client.getJSON(ctx, u, headers, &profile); err != nil {
		return nil, errors.Wrap(err, "failed to scrape registry profile")
	}

	valid := profile.Records[:0]
	for _, rec := range profile.Records {
		if err := validate.Struct(rec); err != nil {
			log.Warn().Err(err).Str("imo", imo).Msg("Dropping invalid registry record")
			continue
		}
		valid = append(valid, rec)
	}
	profile.Records = valid
	if profile.IMO == "" {
		profile.IMO = imo
	}
	return &profile, nil
}

// pick returns the next usable account round-robin
func (s *RegistryScraper) pick() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < len(s.accounts); i++ {
		account := s.accounts[s.next%len(s.accounts)]
		s.next++
		if !s.benched[account] {
			return account, true
		}
	}
	return "", false
}

func (s *RegistryScraper) bench(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.benched[account] = true
}
