package chromedp_crawler

import (
	"math/rand/v2"
	"sync"
)

// Identity is the browser fingerprint presented for one request.
type Identity struct {
	UserAgent      string
	AcceptLanguage string
}

// IdentityRotator hands out user agents in turn and a random Accept-Language.
type IdentityRotator struct {
	mu         sync.Mutex
	userAgents []string
	languages  []string
	next       int
}

// NewIdentityRotator creates a rotator over the default desktop browser identities.
func NewIdentityRotator() *IdentityRotator {
	return &IdentityRotator{
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:129.0) Gecko/20100101 Firefox/129.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		},
		languages: []string{
			"fr-FR,fr;q=0.9,en;q=0.8",
			"fr,fr-FR;q=0.8,en-US;q=0.5,en;q=0.3",
			"fr-FR,fr;q=0.8,en-US;q=0.6,en;q=0.4",
		},
	}
}

// Next returns the identity for the next request.
func (r *IdentityRotator) Next() Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	ua := r.userAgents[r.next]
	r.next = (r.next + 1) % len(r.userAgents)
	return Identity{
		UserAgent:      ua,
		AcceptLanguage: r.languages[rand.IntN(len(r.languages))],
	}
}
