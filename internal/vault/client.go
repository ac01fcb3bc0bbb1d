package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cardperks-go/internal/config"
)

// Resolver exchanges an opaque secret reference for the decrypted bank
// access credential. The core only consults it; storage and encryption live
// elsewhere.
type Resolver interface {
	Resolve(ctx context.Context, secretRef string) (string, error)
}

type HTTPResolver struct {
	cfg  *config.Config
	http *http.Client
}

func NewHTTPResolver(cfg *config.Config) *HTTPResolver {
	return &HTTPResolver{cfg: cfg, http: &http.Client{}}
}

func (r *HTTPResolver) Resolve(ctx context.Context, secretRef string) (string, error) {
	if secretRef == "" {
		return "", fmt.Errorf("empty secret reference")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.VaultTimeout)*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", r.cfg.VaultBaseURL+"/v1/secret/data/"+secretRef, nil)
	req.Header.Set("X-Vault-Token", r.cfg.VaultToken)

	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("vault error: %s", string(b))
	}

	var out struct {
		Data struct {
			Data struct {
				AccessToken string `json:"access_token"`
			} `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Data.Data.AccessToken == "" {
		return "", fmt.Errorf("secret %q has no access_token", secretRef)
	}
	return out.Data.Data.AccessToken, nil
}
