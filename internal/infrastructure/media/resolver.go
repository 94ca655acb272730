package media

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

// Resolver turns stored object keys into absolute URLs. References that
// already carry a scheme pass through unchanged.
type Resolver struct {
	base *url.URL
}

var _ ports.MediaResolver = (*Resolver)(nil)

func NewResolver(publicBaseURL string) (*Resolver, error) {
	trimmed := strings.TrimSpace(publicBaseURL)
	if trimmed == "" {
		return &Resolver{}, nil
	}

	base, err := url.Parse(strings.TrimRight(trimmed, "/") + "/")
	if err != nil {
		return nil, errs.Wrap(err, "parse media base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("media base url must be absolute")
	}
	return &Resolver{base: base}, nil
}

func (r *Resolver) ResolveMediaURLs(ctx context.Context, refs []string) ([]string, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	out := make([]string, 0, len(refs))
	for _, raw := range refs {
		ref := strings.TrimSpace(raw)
		if ref == "" {
			continue
		}
		parsed, err := url.Parse(ref)
		if err != nil {
			return nil, errs.WithKind(errs.Wrapf(err, "parse media reference %q", ref), errs.KindValidation)
		}
		if parsed.Scheme != "" || r.base == nil {
			out = append(out, ref)
			continue
		}
		out = append(out, r.base.ResolveReference(&url.URL{Path: strings.TrimLeft(parsed.Path, "/")}).String())
	}
	return out, nil
}
