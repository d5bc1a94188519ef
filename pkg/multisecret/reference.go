package multisecret

import "fmt"

// Reference points at one value inside the secret.
type Reference struct {
	SecretID string
	Key      string
}

// String returns the CloudFormation dynamic reference resolving to the value.
func (r Reference) String() string {
	return fmt.Sprintf("{{resolve:secretsmanager:%s:SecretString:%s::}}", r.SecretID, r.Key)
}

// JSONPath returns the secret#.key form understood by secret resolvers that
// extract a field from a JSON secret.
func (r Reference) JSONPath() string {
	return r.SecretID + "#." + r.Key
}
