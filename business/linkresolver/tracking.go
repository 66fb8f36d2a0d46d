package linkresolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/pobyzaarif/goshortcute"

	"smartLink/pkg/apperrors"
	"smartLink/pkg/logger"
)

type TrackingLinks struct {
	Smart    string            `json:"smart"`
	Regional map[string]string `json:"regional"`
	Tracked  map[string]string `json:"tracked"`
}

// TrackingLinks builds the shareable links of a product: the smart link, one
// pinned link per active region and one encrypted tracking link per context.
func (r *Resolver) TrackingLinks(ctx context.Context, productID string, contexts []string) (TrackingLinks, error) {
	if err := ctx.Err(); err != nil {
		return TrackingLinks{}, fmt.Errorf("context error: %w", err)
	}

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return TrackingLinks{}, errors.New("product id is required")
	}

	base := strings.TrimRight(r.cfg.PublicBaseURL, "/") + "/api/v1/go/"
	links := TrackingLinks{
		Smart:    base + url.PathEscape(productID),
		Regional: map[string]string{},
		Tracked:  map[string]string{},
	}

	active, err := r.locator.ActiveRegions(ctx)
	if err != nil {
		return TrackingLinks{}, err
	}
	for _, region := range active {
		links.Regional[region.ID] = links.Smart + "?" + url.Values{"region": {region.ID}}.Encode()
	}

	for _, c := range contexts {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		token, err := r.encodeToken(productID, c)
		if err != nil {
			logger.Error("failed to encrypt tracking token", "product_id", productID, "error", err)
			return TrackingLinks{}, err
		}
		links.Tracked[c] = base + "t?" + url.Values{"token": {token}}.Encode()
	}

	return links, nil
}

func (r *Resolver) encodeToken(productID, origin string) (string, error) {
	if r.cfg.TokenKey == "" {
		return "", errors.New("tracking token key is not configured")
	}
	plain := fmt.Sprintf("%s|%s", productID, origin)
	encrypted, err := goshortcute.AESCBCEncrypt([]byte(plain), []byte(r.cfg.TokenKey))
	if err != nil {
		return "", err
	}
	return goshortcute.StringtoBase64Encode(encrypted), nil
}

// DecodeToken recovers the product and context a tracking link was issued for.
func (r *Resolver) DecodeToken(token string) (productID, origin string, err error) {
	if r.cfg.TokenKey == "" || strings.TrimSpace(token) == "" {
		return "", "", apperrors.ErrInvalidToken
	}

	// malformed ciphertext can panic inside the block decrypter
	defer func() {
		if recover() != nil {
			productID, origin, err = "", "", apperrors.ErrInvalidToken
		}
	}()

	decoded := goshortcute.StringtoBase64Decode(token)
	plain, err := goshortcute.AESCBCDecrypt([]byte(decoded), []byte(r.cfg.TokenKey))
	if err != nil {
		return "", "", apperrors.ErrInvalidToken
	}

	parts := strings.SplitN(plain, "|", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", apperrors.ErrInvalidToken
	}
	return parts[0], parts[1], nil
}
