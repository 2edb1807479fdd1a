package paylink

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/billing"
)

var _ billing.LinkProvider = (*Static)(nil)

// Static builds links to a self-hosted payment page. It is used when no
// Stripe key is configured.
type Static struct {
	base *url.URL
}

// NewStatic returns a Static provider rooted at baseURL.
func NewStatic(baseURL string) (*Static, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse payment base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("payment base url %q must be absolute", baseURL)
	}
	return &Static{base: u}, nil
}

// CreateLink returns <base>/<invoice number>?amount=<amount>.
func (s *Static) CreateLink(_ context.Context, req billing.LinkRequest) (string, error) {
	u := s.base.JoinPath(req.InvoiceNumber)
	q := u.Query()
	q.Set("amount", req.Amount.StringFixed(2))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
