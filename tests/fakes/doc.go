// Package fakes provides test doubles for the cloud SDK clients used by the
// stores.
//
// Fakes are hand written and keep just enough state to behave like the real
// service: secrets must exist before they are written, versions increase on
// every write and policies round-trip through Get/Put. Every fake also
// exposes an Err field that, when set, is returned by every call.
//
// Usage:
//
//	fake := fakes.NewFakeSecretsManagerClient()
//	fake.AddSecret("app")
//	s, _ := stores.NewSecretsManagerStore(nil,
//	    stores.WithSecretsManagerClient(fake),
//	    stores.WithSTSClient(fakes.NewFakeSTSClient()))
package fakes
