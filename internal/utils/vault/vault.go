package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dwarvesf/paylink-backend/internal/utils/config"
)

var ErrSecretNotFound = errors.New("vault secret not found")

// VaultClient reads secrets from Vault after a Kubernetes service-account login.
type VaultClient struct {
	client       *resty.Client
	kvSecretPath string
	role         string
	tokenPath    string
	token        string
}

func New(cfg config.VaultConfig) (*VaultClient, error) {
	vc := &VaultClient{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(cfg.Addr, "/")).
			SetTimeout(10 * time.Second),
		kvSecretPath: strings.Trim(cfg.KVSecretPath, "/"),
		role:         cfg.Role,
		tokenPath:    cfg.TokenPath,
	}

	token, err := vc.login()
	if err != nil {
		return nil, err
	}
	vc.token = token
	return vc, nil
}

func (vc *VaultClient) kubernetesToken() (string, error) {
	token, err := os.ReadFile(vc.tokenPath)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(string(token)), nil
}

type loginResponse struct {
	Errors []string `json:"errors"`
	Auth   *struct {
		ClientToken string `json:"client_token"`
	} `json:"auth"`
}

func (vc *VaultClient) login() (string, error) {
	k8sToken, err := vc.kubernetesToken()
	if err != nil {
		return "", err
	}

	resp, err := vc.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"jwt":  k8sToken,
			"role": vc.role,
		}).
		Post("/v1/auth/kubernetes/login")
	if err != nil {
		return "", err
	}

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("vault authentication failed with status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var result loginResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to parse vault response: %w", err)
	}
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("vault authentication error: %v", result.Errors)
	}
	if result.Auth == nil || result.Auth.ClientToken == "" {
		return "", errors.New("vault returned empty client_token")
	}

	return result.Auth.ClientToken, nil
}

type kvResponse struct {
	Errors []string `json:"errors"`
	Data   *struct {
		// KV v2 nests the secret map one level down
		Data map[string]interface{} `json:"data"`
	} `json:"data"`
}

// GetKV retrieves one key of the configured KV v2 secret.
func (vc *VaultClient) GetKV(secretKey string) (string, error) {
	resp, err := vc.client.R().
		SetHeader("X-Vault-Token", vc.token).
		Get("/v1/" + vc.kvSecretPath)
	if err != nil {
		return "", err
	}

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("vault KV get failed with status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var result kvResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to parse vault response: %w", err)
	}
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("vault KV get error: %v", result.Errors)
	}
	if result.Data == nil || result.Data.Data == nil {
		return "", fmt.Errorf("vault response missing nested 'data' field")
	}

	raw, ok := result.Data.Data[secretKey]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, secretKey)
	}
	secret, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("secret value for key '%s' is not a string", secretKey)
	}

	return secret, nil
}
