package main

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/golang-jwt/jwt/v5"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"software.sslmate.com/src/go-pkcs12"

	"mailboxaudit/internal/common/logger"
	"mailboxaudit/internal/common/security"
)

// OAuth scopes for the two services the tool talks to. Application
// permissions always use the .default scope of the target resource.
const (
	graphScope    = "https://graph.microsoft.com/.default"
	exchangeScope = "https://outlook.office365.com/.default"
)

// TokenClaims represents relevant claims from Microsoft Entra ID JWT tokens
type TokenClaims struct {
	AppDisplayName string   `json:"app_displayname"` // Application display name from Entra ID
	Roles          []string `json:"roles"`           // Assigned application roles (e.g., Mail.Read)
	jwt.RegisteredClaims
}

// getCredential builds the token credential shared by the Exchange admin
// client and the Graph mail backend. Client secret takes precedence over a
// PFX certificate when both are configured. In verbose mode a token is
// acquired eagerly so its claims can be inspected before any mailbox work
// starts.
func getCredential(ctx context.Context, config *Config, log *slog.Logger) (azcore.TokenCredential, error) {
	logger.LogDebug(log, "Setting up credential",
		"tenantID", security.MaskGUID(config.TenantID),
		"clientID", security.MaskGUID(config.ClientID))

	cred, err := buildCredential(config, log)
	if err != nil {
		return nil, err
	}

	if config.VerboseMode {
		token, err := cred.GetToken(ctx, policy.TokenRequestOptions{
			Scopes: []string{exchangeScope},
		})
		if err != nil {
			logVerbose(config.VerboseMode, "Warning: Could not retrieve token for verbose display: %v", err)
		} else {
			printTokenInfo(token)
		}
	}

	return cred, nil
}

func buildCredential(config *Config, log *slog.Logger) (azcore.TokenCredential, error) {
	// 1. Client Secret
	if config.ClientSecret != "" {
		logger.LogDebug(log, "Authentication method: Client Secret")
		return azidentity.NewClientSecretCredential(config.TenantID, config.ClientID, config.ClientSecret, nil)
	}

	// 2. PFX File
	if config.CertPath != "" {
		logger.LogDebug(log, "Authentication method: PFX Certificate File", "path", config.CertPath)
		pfxData, err := os.ReadFile(config.CertPath)
		if err != nil {
			logger.LogError(log, "Failed to read PFX file", "path", config.CertPath, "error", err)
			return nil, fmt.Errorf("failed to read PFX file: %w", err)
		}
		logger.LogDebug(log, "PFX file read successfully", "bytes", len(pfxData))
		return createCertCredential(config.TenantID, config.ClientID, pfxData, config.CertPassword)
	}

	return nil, fmt.Errorf("no valid authentication method provided (use -client-secret or -cert-path)")
}

func createCertCredential(tenantID, clientID string, pfxData []byte, password string) (*azidentity.ClientCertificateCredential, error) {
	// go-pkcs12 handles SHA-256 and other modern PFX algorithms the stdlib
	// cannot decode.
	key, cert, caCerts, err := pkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PFX: %w", err)
	}

	privKey, ok := key.(crypto.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("decoded key is not a valid crypto.PrivateKey")
	}

	// azidentity expects the leaf certificate first
	certs := []*x509.Certificate{cert}
	if len(caCerts) > 0 {
		certs = append(certs, caCerts...)
	}

	opts := &azidentity.ClientCertificateCredentialOptions{
		SendCertificateChain: true,
	}
	return azidentity.NewClientCertificateCredential(tenantID, clientID, certs, privKey, opts)
}

// setupGraphClient initializes the Microsoft Graph SDK client for the graph
// mail backend.
func setupGraphClient(cred azcore.TokenCredential, config *Config) (*msgraphsdk.GraphServiceClient, error) {
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{graphScope})
	if err != nil {
		return nil, fmt.Errorf("graph client initialization failed: %w", err)
	}

	if config.VerboseMode {
		logVerbose(config.VerboseMode, "Graph SDK client initialized successfully")
		logVerbose(config.VerboseMode, "Target scope: %s", graphScope)
	}

	return client, nil
}

// Print token information
func printTokenInfo(token azcore.AccessToken) {
	fmt.Println()
	fmt.Println("Token Information:")
	fmt.Println("------------------")
	fmt.Printf("Token acquired successfully\n")
	fmt.Printf("Expires at: %s\n", token.ExpiresOn.Format("2006-01-02 15:04:05 MST"))

	timeUntilExpiry := time.Until(token.ExpiresOn)
	fmt.Printf("Valid for: %s\n", timeUntilExpiry.Round(time.Second))

	fmt.Printf("Token (masked): %s\n", security.MaskAccessToken(token.Token))
	fmt.Printf("Token length: %d characters\n", len(token.Token))

	// Parse and display JWT claims (application name and roles)
	fmt.Println()
	fmt.Println("JWT Claims:")
	appName, roles, err := parseTokenClaims(token.Token)
	if err != nil {
		fmt.Printf("  (Could not parse JWT claims: %v)\n", err)
	} else {
		fmt.Printf("  Application Name: %s\n", appName)
		fmt.Printf("  Assigned Roles: %s\n", roles)
	}

	fmt.Println()
}

// parseTokenClaims extracts application name and assigned roles from a JWT access token.
func parseTokenClaims(tokenString string) (string, string, error) {
	// Parse without verification (token already validated by Azure SDK)
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &TokenClaims{})
	if err != nil {
		return "", "", fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return "", "", fmt.Errorf("failed to extract claims from token")
	}

	appName := claims.AppDisplayName
	if appName == "" {
		appName = "(not available)"
	}

	rolesStr := "(none)"
	if len(claims.Roles) > 0 {
		rolesStr = strings.Join(claims.Roles, ", ")
	}

	return appName, rolesStr, nil
}
