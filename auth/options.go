package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrTokenNotFound     = errors.New("auth: token not found")
	ErrTokenInvalidInput = errors.New("auth: invalid token source")
)

// AdminKeyHeader carries the admin key when a bearer token is not used.
const AdminKeyHeader = "X-Admin-Key"

type TokenExtractor func(*http.Request) (string, error)

type MiddlewareSkipper func(*http.Request) bool

type MiddlewareErrorHandler func(http.ResponseWriter, *http.Request, error)

type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	parser       TokenParser
	extractor    TokenExtractor
	skipper      MiddlewareSkipper
	errorHandler MiddlewareErrorHandler
}

func newMiddlewareConfig(parser TokenParser, opts ...MiddlewareOption) (middlewareConfig, error) {
	if parser == nil {
		return middlewareConfig{}, errors.New("auth: middleware requires a token parser")
	}
	cfg := middlewareConfig{
		parser:       parser,
		extractor:    DefaultExtractor(),
		skipper:      defaultSkipper,
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.extractor == nil {
		cfg.extractor = DefaultExtractor()
	}
	if cfg.skipper == nil {
		cfg.skipper = defaultSkipper
	}
	if cfg.errorHandler == nil {
		cfg.errorHandler = defaultErrorHandler
	}
	return cfg, nil
}

func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if extractor != nil {
			cfg.extractor = extractor
		}
	}
}

func WithSkipper(skipper MiddlewareSkipper) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if skipper != nil {
			cfg.skipper = skipper
		}
	}
}

func WithErrorHandler(handler MiddlewareErrorHandler) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if handler != nil {
			cfg.errorHandler = handler
		}
	}
}

// DefaultExtractor reads the admin key header, then a bearer token.
func DefaultExtractor() TokenExtractor {
	return ChainExtractors(HeaderTokenExtractor(AdminKeyHeader), BearerTokenExtractor())
}

func HeaderTokenExtractor(name string) TokenExtractor {
	name = strings.TrimSpace(name)
	return func(r *http.Request) (string, error) {
		if name == "" {
			return "", ErrTokenInvalidInput
		}
		value := strings.TrimSpace(r.Header.Get(name))
		if value == "" {
			return "", ErrTokenNotFound
		}
		return value, nil
	}
}

func BearerTokenExtractor() TokenExtractor {
	return func(r *http.Request) (string, error) {
		header := r.Header.Get("Authorization")
		if header == "" {
			return "", ErrTokenNotFound
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", ErrTokenInvalidInput
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", ErrTokenInvalidInput
		}
		return token, nil
	}
}

// ChainExtractors returns the first token found. When none is found the
// most specific error wins: an invalid source over a missing one.
func ChainExtractors(extractors ...TokenExtractor) TokenExtractor {
	copied := append([]TokenExtractor(nil), extractors...)
	return func(r *http.Request) (string, error) {
		var lastErr error = ErrTokenNotFound
		for _, extractor := range copied {
			if extractor == nil {
				continue
			}
			token, err := extractor(r)
			if err == nil {
				return token, nil
			}
			if !errors.Is(err, ErrTokenNotFound) {
				lastErr = err
			}
		}
		return "", lastErr
	}
}

func defaultSkipper(*http.Request) bool { return false }

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
