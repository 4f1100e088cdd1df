package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"

	"bizpulse/internal/config"
)

const (
	defaultRegion = "us-east-1"

	// ssmOperationTimeout is generous to absorb IAM propagation delays
	// right after an account is set up.
	ssmOperationTimeout = 15 * time.Second

	// jwtSecretBytes of entropy, hex-encoded to 64 characters.
	jwtSecretBytes = 32

	jwtSecretKey = "auth/jwt_secret"
)

var validEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// SSMClient is the subset of the SSM API used by the secrets commands.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// awsSession is an authenticated AWS session.
type awsSession struct {
	SSM       SSMClient
	AccountID string
	CallerARN string
}

// newAWSSession loads the default credential chain and confirms the
// identity with STS GetCallerIdentity before anything is written.
func newAWSSession(ctx context.Context, region, profile string) (*awsSession, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	identityCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(identityCtx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("verifying AWS identity (profile %q, region %q): %w", profile, region, err)
	}

	return &awsSession{
		SSM:       ssm.NewFromConfig(cfg),
		AccountID: aws.ToString(identity.Account),
		CallerARN: aws.ToString(identity.Arn),
	}, nil
}

// SSMManager writes BizPulse parameters under /{env}/bizpulse/.
type SSMManager struct {
	client SSMClient
	env    string
	logger *slog.Logger
}

func NewSSMManager(client SSMClient, env string, logger *slog.Logger) *SSMManager {
	return &SSMManager{client: client, env: env, logger: logger}
}

// SSMPath maps "auth/jwt_secret" to "/dev/bizpulse/auth/jwt_secret", the
// namespace config.SSMProvider reads from.
func (m *SSMManager) SSMPath(categoryAndKey string) string {
	return config.ParameterPath(m.env, strings.TrimPrefix(categoryAndKey, "/"))
}

// ParameterExists probes without decryption, so kms:Decrypt is not needed.
func (m *SSMManager) ParameterExists(ctx context.Context, path string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, ssmOperationTimeout)
	defer cancel()

	_, err := m.client.GetParameter(opCtx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(false),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking SSM parameter %q: %w", path, err)
	}
	return true, nil
}

// PutSecret writes a SecureString. The value is never logged.
func (m *SSMManager) PutSecret(ctx context.Context, path, value string, overwrite bool) error {
	return m.putParameter(ctx, path, value, ssmtypes.ParameterTypeSecureString, overwrite)
}

// PutString writes a plaintext String parameter, always overwriting.
func (m *SSMManager) PutString(ctx context.Context, path, value string) error {
	return m.putParameter(ctx, path, value, ssmtypes.ParameterTypeString, true)
}

func (m *SSMManager) putParameter(ctx context.Context, path, value string, paramType ssmtypes.ParameterType, overwrite bool) error {
	if path == "" {
		return errors.New("SSM parameter path must not be empty")
	}
	if value == "" {
		return fmt.Errorf("SSM parameter value must not be empty for path %q", path)
	}

	opCtx, cancel := context.WithTimeout(ctx, ssmOperationTimeout)
	defer cancel()

	_, err := m.client.PutParameter(opCtx, &ssm.PutParameterInput{
		Name:      aws.String(path),
		Value:     aws.String(value),
		Type:      paramType,
		Overwrite: aws.Bool(overwrite),
	})
	if err != nil {
		var exists *ssmtypes.ParameterAlreadyExists
		if errors.As(err, &exists) {
			return fmt.Errorf("SSM parameter %q already exists (use --force to replace): %w", path, err)
		}
		return fmt.Errorf("writing SSM parameter %q: %w", path, err)
	}

	m.logger.Info("SSM parameter written",
		"path", path,
		"type", string(paramType),
		"value_length", len(value),
	)
	return nil
}

// GenerateSecureToken returns 32 random bytes as lowercase hex.
func GenerateSecureToken() (string, error) {
	buf := make([]byte, jwtSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secure token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// envVarFor returns the _SSM_PARAM pointer variable the config loader reads
// for a parameter key, e.g. auth/jwt_secret -> JWT_SECRET_SSM_PARAM.
func envVarFor(categoryAndKey string) string {
	key := categoryAndKey
	if i := strings.LastIndex(key, "/"); i >= 0 {
		key = key[i+1:]
	}
	return strings.ToUpper(key) + "_SSM_PARAM"
}

type secretsFlags struct {
	env     string
	region  string
	profile string
}

func (f *secretsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.env, "env", "", "target environment (dev, staging, prod)")
	cmd.Flags().StringVar(&f.region, "region", defaultRegion, "AWS region")
	cmd.Flags().StringVar(&f.profile, "profile", "", "AWS shared config profile")
	_ = cmd.MarkFlagRequired("env")
}

func (a *app) ssmManager(ctx context.Context, f *secretsFlags) (*SSMManager, error) {
	if !validEnvironments[f.env] {
		return nil, fmt.Errorf("invalid environment %q (must be dev, staging, or prod)", f.env)
	}
	sess, err := a.openSSM(ctx, f.region, f.profile)
	if err != nil {
		return nil, err
	}
	a.logger.Info("AWS identity verified", "account_id", sess.AccountID, "arn", sess.CallerARN, "env", f.env)
	return NewSSMManager(sess.SSM, f.env, a.logger), nil
}

func newSecretsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage API secrets in AWS SSM Parameter Store",
	}
	cmd.AddCommand(newSecretsInitCmd(a), newSecretsPutCmd(a))
	return cmd
}

// newSecretsInitCmd generates the JWT signing key unless it already exists.
func newSecretsInitCmd(a *app) *cobra.Command {
	var (
		flags secretsFlags
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate the JWT signing secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.ssmManager(cmd.Context(), &flags)
			if err != nil {
				return err
			}

			path := m.SSMPath(jwtSecretKey)
			exists, err := m.ParameterExists(cmd.Context(), path)
			if err != nil {
				return err
			}
			if exists && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, skipping.\n", path)
			} else {
				secret, err := GenerateSecureToken()
				if err != nil {
					return err
				}
				if err := m.PutSecret(cmd.Context(), path, secret, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", envVarFor(jwtSecretKey), path)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "rotate an existing secret")
	return cmd
}

// newSecretsPutCmd stores a value read from stdin, so it never appears in
// shell history.
func newSecretsPutCmd(a *app) *cobra.Command {
	var (
		flags secretsFlags
		plain bool
		force bool
	)
	cmd := &cobra.Command{
		Use:   "put <category/key>",
		Short: "Store a value read from stdin, e.g. billing/stripe_secret_key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readValue(cmd.InOrStdin())
			if err != nil {
				return err
			}

			m, err := a.ssmManager(cmd.Context(), &flags)
			if err != nil {
				return err
			}

			path := m.SSMPath(args[0])
			if plain {
				err = m.PutString(cmd.Context(), path, value)
			} else {
				err = m.PutSecret(cmd.Context(), path, value, force)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n%s=%s\n", path, envVarFor(args[0]), path)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&plain, "plain", false, "store as a String instead of a SecureString")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing value")
	return cmd
}

// readValue returns the first line of r without surrounding whitespace.
func readValue(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading value: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", errors.New("no value on stdin")
	}
	return value, nil
}
