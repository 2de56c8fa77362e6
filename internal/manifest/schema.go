package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	vperrors "github.com/systmms/vaultops/internal/errors"
	"github.com/systmms/vaultops/internal/resource"
)

// Per-kind JSON schemas applied to each manifest document before typing.
// Documents are decoded from YAML into plain maps and validated as JSON.
var kindSchemas = map[resource.Kind]string{
	resource.KindSecretsEngine: `{
		"type": "object",
		"required": ["kind", "spec"],
		"properties": {
			"kind": {"const": "SecretsEngine"},
			"spec": {
				"type": "object",
				"required": ["path", "engine"],
				"properties": {
					"path": {"type": "string", "minLength": 1},
					"engine": {
						"type": "object",
						"required": ["type"],
						"properties": {
							"type": {"enum": ["kv-v2", "pki"]},
							"description": {"type": "string"},
							"local": {"type": "boolean"},
							"sealWrap": {"type": "boolean"},
							"maxVersions": {"type": "integer", "minimum": 0},
							"casRequired": {"type": "boolean"},
							"deleteVersionAfter": {"type": "string"},
							"config": {
								"type": "object",
								"properties": {
									"defaultLeaseTtl": {"type": "string"},
									"maxLeaseTtl": {"type": "string"}
								}
							}
						}
					}
				}
			}
		}
	}`,
	resource.KindIssuer: `{
		"type": "object",
		"required": ["kind", "spec"],
		"properties": {
			"kind": {"const": "Issuer"},
			"spec": {
				"type": "object",
				"required": ["secretsEnginePath", "name", "certParams"],
				"properties": {
					"secretsEnginePath": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"certParams": {
						"type": "object",
						"required": ["commonName"],
						"properties": {
							"commonName": {"type": "string", "minLength": 1},
							"ttl": {"type": "string"},
							"keyType": {"type": "string"},
							"keyBits": {"type": "integer", "minimum": 0},
							"organization": {"type": "array", "items": {"type": "string"}},
							"ou": {"type": "array", "items": {"type": "string"}},
							"country": {"type": "array", "items": {"type": "string"}}
						}
					},
					"chaining": {
						"type": "object",
						"required": ["upstreamIssuerRef"],
						"properties": {
							"upstreamIssuerRef": {"type": "string", "minLength": 1}
						}
					}
				}
			}
		}
	}`,
	resource.KindPKIRole: `{
		"type": "object",
		"required": ["kind", "spec"],
		"properties": {
			"kind": {"const": "PKIRole"},
			"spec": {
				"type": "object",
				"required": ["secretsEnginePath", "name", "role"],
				"properties": {
					"secretsEnginePath": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"role": {
						"type": "object",
						"required": ["issuerRef"],
						"properties": {
							"issuerRef": {"type": "string", "minLength": 1},
							"allowedDomains": {"type": "array", "items": {"type": "string"}},
							"allowSubdomains": {"type": "boolean"},
							"allowBareDomains": {"type": "boolean"},
							"ttl": {"type": "string"},
							"maxTtl": {"type": "string"},
							"keyType": {"type": "string"},
							"keyBits": {"type": "integer", "minimum": 0},
							"serverFlag": {"type": "boolean"},
							"clientFlag": {"type": "boolean"}
						}
					}
				}
			}
		}
	}`,
	resource.KindSSHKey: `{
		"type": "object",
		"required": ["kind", "spec"],
		"properties": {
			"kind": {"const": "SSHKey"},
			"spec": {
				"type": "object",
				"required": ["secretsEnginePath", "path", "version", "keyOptions", "publicKey", "privateKey"],
				"properties": {
					"secretsEnginePath": {"type": "string", "minLength": 1},
					"path": {"type": "string", "minLength": 1},
					"version": {"type": "integer", "minimum": 1},
					"keyOptions": {
						"type": "object",
						"required": ["type"],
						"properties": {
							"type": {"enum": ["rsa", "ec", "ed25519"]},
							"bits": {"type": "integer", "minimum": 0},
							"curve": {"type": "string"}
						}
					},
					"publicKey": {
						"type": "object",
						"required": ["secretKey"],
						"properties": {"secretKey": {"type": "string", "minLength": 1}}
					},
					"privateKey": {
						"type": "object",
						"required": ["secretKey"],
						"properties": {"secretKey": {"type": "string", "minLength": 1}}
					}
				}
			}
		}
	}`,
	resource.KindPasswordPolicy: `{
		"type": "object",
		"required": ["kind", "spec"],
		"properties": {
			"kind": {"const": "PasswordPolicy"},
			"spec": {
				"type": "object",
				"required": ["path", "policy"],
				"properties": {
					"path": {"type": "string", "minLength": 1},
					"policy": {
						"type": "object",
						"required": ["length"],
						"properties": {
							"length": {"type": "integer", "minimum": 1},
							"rules": {
								"type": "array",
								"items": {
									"type": "object",
									"required": ["charset"],
									"properties": {
										"charset": {"type": "string", "minLength": 1},
										"minChars": {"type": "integer", "minimum": 0}
									}
								}
							}
						}
					}
				}
			}
		}
	}`,
	resource.KindPassword: `{
		"type": "object",
		"required": ["kind", "spec"],
		"properties": {
			"kind": {"const": "Password"},
			"spec": {
				"type": "object",
				"required": ["secretsEnginePath", "path", "secretKey", "policyPath", "version"],
				"properties": {
					"secretsEnginePath": {"type": "string", "minLength": 1},
					"path": {"type": "string", "minLength": 1},
					"secretKey": {"type": "string", "minLength": 1},
					"policyPath": {"type": "string", "minLength": 1},
					"version": {"type": "integer", "minimum": 1},
					"encoding": {"enum": ["utf8", "base64"]}
				}
			}
		}
	}`,
}

// validateDocument checks a decoded manifest document against the schema for
// its kind.
func validateDocument(source string, kind resource.Kind, doc interface{}) error {
	schema, ok := kindSchemas[kind]
	if !ok {
		return vperrors.ManifestError{
			Kind:       vperrors.ManifestUnsupportedKind,
			Identity:   string(kind),
			Message:    fmt.Sprintf("unsupported kind %q in %s", kind, source),
			Suggestion: "Supported kinds: SecretsEngine, Issuer, PKIRole, SSHKey, PasswordPolicy, Password",
		}
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return vperrors.ManifestError{
			Kind:       vperrors.ManifestInvalidDocument,
			Message:    fmt.Sprintf("document in %s failed validation:\n  - %s", source, strings.Join(messages, "\n  - ")),
			Suggestion: "Fix the listed fields; see the manifest reference for the expected layout",
		}
	}
	return nil
}
