package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/systmms/vaultops/internal/resource"
)

// fetchPasswordPolicy reads the named policy from sys/policies/password.
func (c *Client) fetchPasswordPolicy(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	id := res.Identity()

	policy, err := c.api.Logical().ReadWithContext(ctx, "sys/policies/password/"+res.PasswordPolicy.Path)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, gatewayErr("fetch", id, err)
	}
	if policy == nil {
		return nil, nil
	}

	snap, err := c.readStateSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap}, nil
}

// writePasswordPolicy renders the declared rules as a Vault policy document
// and writes it. Create and update are the same request.
func (c *Client) writePasswordPolicy(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	id := res.Identity()

	doc := renderPasswordPolicy(res.PasswordPolicy.Policy)
	payload := map[string]interface{}{"policy": doc}
	if _, err := c.api.Logical().WriteWithContext(ctx, "sys/policies/password/"+res.PasswordPolicy.Path, payload); err != nil {
		return nil, gatewayErr("create", id, err)
	}

	snap, err := c.writeStateSnapshot(ctx, res)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap}, nil
}

// generatePassword asks Vault to produce a value from the named policy.
func (c *Client) generatePassword(ctx context.Context, id resource.Identity, policyPath string) (string, error) {
	secret, err := c.api.Logical().ReadWithContext(ctx, "sys/policies/password/"+policyPath+"/generate")
	if err != nil {
		return "", gatewayErr("update", id, err)
	}
	if secret == nil || secret.Data == nil {
		return "", gatewayErr("update", id, fmt.Errorf("password policy %q returned no value", policyPath))
	}
	value, _ := secret.Data["password"].(string)
	if value == "" {
		return "", gatewayErr("update", id, fmt.Errorf("password policy %q returned an empty value", policyPath))
	}
	return value, nil
}

// renderPasswordPolicy emits the HCL document Vault expects for a policy.
func renderPasswordPolicy(rules resource.PasswordPolicyRules) string {
	var b strings.Builder
	fmt.Fprintf(&b, "length = %d\n", rules.Length)
	for _, rule := range rules.Rules {
		b.WriteString("rule \"charset\" {\n")
		fmt.Fprintf(&b, "  charset = %q\n", rule.Charset)
		if rule.MinChars > 0 {
			fmt.Fprintf(&b, "  min-chars = %d\n", rule.MinChars)
		}
		b.WriteString("}\n")
	}
	return b.String()
}
