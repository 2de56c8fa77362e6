// Package manifest loads declared resources from YAML files. Files may hold
// multiple documents; directories are walked for .yaml/.yml files and all
// documents feed a single run.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	vperrors "github.com/systmms/vaultops/internal/errors"
	"github.com/systmms/vaultops/internal/resource"
)

// Load reads every manifest document from the given files and directories and
// returns the declared resources in document order.
func Load(paths []string) ([]*resource.Resource, error) {
	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}

	var resources []*resource.Resource
	for _, file := range files {
		loaded, err := loadFile(file)
		if err != nil {
			return nil, err
		}
		resources = append(resources, loaded...)
	}
	if len(resources) == 0 {
		return nil, vperrors.UserError{
			Message:    "No resources found in the given manifests",
			Suggestion: "Check the manifest paths and that documents declare a 'kind'",
		}
	}
	return resources, nil
}

// expandPaths resolves directories to their YAML files, sorted for a stable
// load order.
func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, vperrors.UserError{
				Message:    fmt.Sprintf("Cannot read manifest path '%s'", path),
				Details:    err.Error(),
				Suggestion: "Check the path exists and is readable",
				Err:        err,
			}
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(p))
			if ext == ".yaml" || ext == ".yml" {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, vperrors.UserError{
				Message:    fmt.Sprintf("Failed to walk manifest directory '%s'", path),
				Details:    err.Error(),
				Err:        err,
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

type envelope struct {
	Kind resource.Kind `yaml:"kind"`
	Spec yaml.Node     `yaml:"spec"`
}

func loadFile(path string) ([]*resource.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, vperrors.UserError{
			Message:    fmt.Sprintf("Failed to read manifest '%s'", path),
			Details:    err.Error(),
			Err:        err,
		}
	}
	defer f.Close()

	var resources []*resource.Resource
	dec := yaml.NewDecoder(f)
	for docIndex := 1; ; docIndex++ {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, vperrors.ManifestError{
				Kind:       vperrors.ManifestInvalidDocument,
				Message:    fmt.Sprintf("invalid YAML in %s (document %d): %v", path, docIndex, err),
				Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
			}
		}
		if node.Kind == 0 || node.IsZero() {
			continue
		}

		res, err := decodeDocument(fmt.Sprintf("%s (document %d)", path, docIndex), &node)
		if err != nil {
			return nil, err
		}
		if res != nil {
			resources = append(resources, res)
		}
	}
	return resources, nil
}

func decodeDocument(source string, node *yaml.Node) (*resource.Resource, error) {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return nil, vperrors.ManifestError{
			Kind:    vperrors.ManifestInvalidDocument,
			Message: fmt.Sprintf("invalid document in %s: %v", source, err),
		}
	}
	if raw == nil {
		// Explicitly empty document between separators.
		return nil, nil
	}

	var env envelope
	if err := node.Decode(&env); err != nil {
		return nil, vperrors.ManifestError{
			Kind:       vperrors.ManifestInvalidDocument,
			Message:    fmt.Sprintf("document in %s is not a manifest object: %v", source, err),
			Suggestion: "Each document needs a 'kind' and a 'spec' mapping",
		}
	}
	if env.Kind == "" {
		return nil, vperrors.ManifestError{
			Kind:       vperrors.ManifestInvalidDocument,
			Message:    fmt.Sprintf("document in %s has no kind", source),
			Suggestion: "Set 'kind' to one of: SecretsEngine, Issuer, PKIRole, SSHKey, PasswordPolicy, Password",
		}
	}

	if err := validateDocument(source, env.Kind, raw); err != nil {
		return nil, err
	}

	res := &resource.Resource{Kind: env.Kind}
	var decodeErr error
	switch env.Kind {
	case resource.KindSecretsEngine:
		res.SecretsEngine = &resource.SecretsEngineSpec{}
		decodeErr = env.Spec.Decode(res.SecretsEngine)
	case resource.KindIssuer:
		res.Issuer = &resource.IssuerSpec{}
		decodeErr = env.Spec.Decode(res.Issuer)
	case resource.KindPKIRole:
		res.PKIRole = &resource.PKIRoleSpec{}
		decodeErr = env.Spec.Decode(res.PKIRole)
	case resource.KindSSHKey:
		res.SSHKey = &resource.SSHKeySpec{}
		decodeErr = env.Spec.Decode(res.SSHKey)
	case resource.KindPasswordPolicy:
		res.PasswordPolicy = &resource.PasswordPolicySpec{}
		decodeErr = env.Spec.Decode(res.PasswordPolicy)
	case resource.KindPassword:
		res.Password = &resource.PasswordSpec{}
		decodeErr = env.Spec.Decode(res.Password)
	}
	if decodeErr != nil {
		return nil, vperrors.ManifestError{
			Kind:    vperrors.ManifestInvalidDocument,
			Message: fmt.Sprintf("failed to decode %s spec in %s: %v", env.Kind, source, decodeErr),
		}
	}

	if err := res.Validate(); err != nil {
		return nil, vperrors.ManifestError{
			Kind:     vperrors.ManifestInvalidDocument,
			Identity: res.Identity().String(),
			Message:  fmt.Sprintf("invalid %s in %s: %v", env.Kind, source, err),
		}
	}
	return res, nil
}
