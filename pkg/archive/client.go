// Package archive is a typed client for the case and document archive RPC API.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// Service is the archive contract consumed by email-type handlers.
type Service interface {
	GetCases(ctx context.Context, p GetCasesParams) ([]Case, error)
	CreateCase(ctx context.Context, p CreateCaseParams) (*CaseResult, error)
	UpdateCase(ctx context.Context, p UpdateCaseParams) (*CaseResult, error)
	GetDocuments(ctx context.Context, p GetDocumentsParams) ([]Document, error)
	CreateDocument(ctx context.Context, p CreateDocumentParams) (*DocumentResult, error)
	GetProjects(ctx context.Context, p GetProjectsParams) ([]Project, error)
	SyncEnterprise(ctx context.Context, organizationNumber string) (*Enterprise, error)
}

// Client calls the archive over HTTP.
type Client struct {
	baseURL string
	scopes  []string
	cred    azcore.TokenCredential
	http    *http.Client
	logger  *slog.Logger
}

// New creates an archive client. cred may be nil when cfg has no scopes.
func New(cfg Config, cred azcore.TokenCredential, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/",
		scopes:  cfg.Scopes(),
		cred:    cred,
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		logger:  logger.With("system", "archive"),
	}
}

func (c *Client) GetCases(ctx context.Context, p GetCasesParams) ([]Case, error) {
	var out []Case
	if err := c.archive(ctx, "CaseService", "GetCases", p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCase(ctx context.Context, p CreateCaseParams) (*CaseResult, error) {
	var out CaseResult
	if err := c.archive(ctx, "CaseService", "CreateCase", p, &out); err != nil {
		return nil, err
	}
	if out.CaseNumber == "" {
		return nil, fmt.Errorf("create case %q: %w", p.Title, ErrEmptyResponse)
	}
	return &out, nil
}

func (c *Client) UpdateCase(ctx context.Context, p UpdateCaseParams) (*CaseResult, error) {
	var out CaseResult
	if err := c.archive(ctx, "CaseService", "UpdateCase", p, &out); err != nil {
		return nil, err
	}
	if out.CaseNumber == "" {
		return nil, fmt.Errorf("update case %s: %w", p.CaseNumber, ErrEmptyResponse)
	}
	return &out, nil
}

func (c *Client) GetDocuments(ctx context.Context, p GetDocumentsParams) ([]Document, error) {
	var out []Document
	if err := c.archive(ctx, "DocumentService", "GetDocuments", p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateDocument(ctx context.Context, p CreateDocumentParams) (*DocumentResult, error) {
	var out DocumentResult
	if err := c.archive(ctx, "DocumentService", "CreateDocument", p, &out); err != nil {
		return nil, err
	}
	if out.DocumentNumber == "" {
		return nil, fmt.Errorf("create document %q: %w", p.Title, ErrEmptyResponse)
	}
	return &out, nil
}

func (c *Client) GetProjects(ctx context.Context, p GetProjectsParams) ([]Project, error) {
	var out []Project
	if err := c.archive(ctx, "ProjectService", "GetProjects", p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SyncEnterprise(ctx context.Context, organizationNumber string) (*Enterprise, error) {
	var out struct {
		Enterprise *Enterprise `json:"enterprise"`
	}
	if err := c.post(ctx, "syncEnterprise", map[string]string{"orgnr": organizationNumber}, &out); err != nil {
		return nil, err
	}
	if out.Enterprise == nil {
		return nil, fmt.Errorf("sync enterprise %s: %w", organizationNumber, ErrEmptyResponse)
	}
	return out.Enterprise, nil
}

func (c *Client) archive(ctx context.Context, service, method string, parameter, out any) error {
	err := c.post(ctx, "archive", payload{Service: service, Method: method, Parameter: parameter}, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		apiErr.Service = service
		apiErr.Method = method
	}
	return err
}

func (c *Client) post(ctx context.Context, route string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", route, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", route, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if len(c.scopes) > 0 && c.cred != nil {
		token, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: c.scopes})
		if err != nil {
			return fmt.Errorf("acquire archive token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("archive %s: %w", route, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", route, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(content, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(content))
		}
		apiErr.StatusCode = resp.StatusCode
		c.logger.Error("archive error",
			"route", route,
			"status", resp.StatusCode,
			"message", apiErr.Message,
			"data", string(apiErr.Data),
		)
		return apiErr
	}

	if len(bytes.TrimSpace(content)) == 0 || bytes.Equal(bytes.TrimSpace(content), []byte("null")) {
		return fmt.Errorf("archive %s: %w", route, ErrEmptyResponse)
	}
	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("decode %s response: %w", route, err)
	}
	return nil
}
