package device

// Variant identifies which vendor-specific transport implementation a
// device uses. Collection handlers are dispatched on this tag.
type Variant string

const (
	VariantEOS   Variant = "arista.eos"
	VariantNXAPI Variant = "cisco.nxapi"
	VariantIOS   Variant = "cisco.ios"
)

// Credentials carries the login secret for a device session.
type Credentials struct {
	Username string
	Password string
}

// Device is a resolved inventory entry: identity, static tags merged into
// every exported metric, and the vendor session used for transport.
// A device whose session fails to open is never scheduled.
type Device struct {
	Name    string
	Host    string
	Tags    map[string]string
	Variant Variant
	Session Session
}
