package security

// Client is a registered API consumer and the permissions it may request.
type Client struct {
	Secret  string
	Perms   []string
	Enabled bool
}

// Clients is the static registry. Buyer apps get cart/order scopes, the
// merchant dashboard gets fulfillment scopes. Rotations happen by deploy;
// identity management proper lives outside this service.
var Clients = map[string]Client{
	"buyer-app": {
		Secret:  "buyer-app-secret",
		Perms:   []string{"cart.write", "orders.read", "orders.write"},
		Enabled: true,
	},
	"merchant-dashboard": {
		Secret:  "merchant-dashboard-secret",
		Perms:   []string{"orders.read", "fulfillment.write"},
		Enabled: true,
	},
}
