package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmMaxBatchSize is the GetParameters limit per call.
const ssmMaxBatchSize = 10

// ErrParameterNotFound is wrapped when SSM reports parameters it does not hold.
var ErrParameterNotFound = errors.New("ssm parameter not found")

// ErrParameterOutsideNamespace is wrapped when a pointer names a path that
// belongs to another environment or service.
var ErrParameterOutsideNamespace = errors.New("ssm parameter outside environment namespace")

// ParameterPrefix is the namespace every BizPulse parameter of env lives in.
func ParameterPrefix(env string) string {
	return "/" + env + "/bizpulse/"
}

// ParameterPath maps a relative key such as "auth/jwt_secret" to
// "/{env}/bizpulse/auth/jwt_secret". Absolute paths are returned unchanged.
func ParameterPath(env, key string) string {
	if strings.HasPrefix(key, "/") {
		return key
	}
	return ParameterPrefix(env) + strings.Trim(key, "/")
}

type ssmClient interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider resolves *_SSM_PARAM pointers against Parameter Store for one
// deployment environment. Pointers may be relative keys ("auth/jwt_secret")
// or absolute paths; absolute paths must stay inside the environment's
// namespace, so a dev deployment can never read prod secrets.
type SSMProvider struct {
	region string
	env    string
	client ssmClient
}

// NewSSMProvider creates a provider for env (dev, staging or prod) whose
// parameters live in region.
func NewSSMProvider(region, env string) *SSMProvider {
	return &SSMProvider{region: region, env: env}
}

func newSSMProviderWithClient(env string, client ssmClient) *SSMProvider {
	return &SSMProvider{env: env, client: client}
}

func (p *SSMProvider) ensureClient(ctx context.Context) error {
	if p.client != nil {
		return nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return fmt.Errorf("loading AWS config for SSM (region=%s): %w", p.region, err)
	}
	p.client = ssm.NewFromConfig(cfg)
	return nil
}

// GetParametersBatch resolves keys with decryption. The returned map is
// keyed by the keys as given, not by the expanded paths. Duplicate keys
// are fetched once.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	// path -> every key that expands to it
	byPath := make(map[string][]string, len(keys))
	paths := make([]string, 0, len(keys))
	for _, key := range keys {
		path, err := p.expand(key)
		if err != nil {
			return nil, err
		}
		if _, seen := byPath[path]; !seen {
			paths = append(paths, path)
		}
		byPath[path] = append(byPath[path], key)
	}

	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}

	var missing []string
	for start := 0; start < len(paths); start += ssmMaxBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolving SSM parameters: %w", err)
		}
		batch := paths[start:min(start+ssmMaxBatchSize, len(paths))]

		out, err := p.client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          batch,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("SSM GetParameters (%d of %d parameters from %s): %w",
				len(batch), len(paths), batch[0], err)
		}

		for _, param := range out.Parameters {
			if param.Name == nil || param.Value == nil {
				continue
			}
			for _, key := range byPath[*param.Name] {
				result[key] = *param.Value
			}
		}
		missing = append(missing, out.InvalidParameters...)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: %s", ErrParameterNotFound, strings.Join(missing, ", "))
	}
	return result, nil
}

func (p *SSMProvider) expand(key string) (string, error) {
	key = strings.TrimSpace(key)
	if p.env == "" {
		if !strings.HasPrefix(key, "/") {
			return "", fmt.Errorf("relative SSM key %q needs an environment", key)
		}
		return key, nil
	}
	path := ParameterPath(p.env, key)
	if !strings.HasPrefix(path, ParameterPrefix(p.env)) || len(path) == len(ParameterPrefix(p.env)) {
		return "", fmt.Errorf("%w: %q is not under %s", ErrParameterOutsideNamespace, key, ParameterPrefix(p.env))
	}
	return path, nil
}
