package security

// In-memory client registry (replace with DB/config later)
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"payments.read","payments.write"}
	Enabled bool
}

var Clients = map[string]Client{
	"marketplace-web":  {ID: "marketplace-web", Secret: "marketplace-web-secret", Perms: []string{"payments.read", "payments.write"}, Enabled: true},
	"svc-back-office":  {ID: "svc-back-office", Secret: "back-office-secret", Perms: []string{"payments.read", "payments.write"}, Enabled: true},
	"svc-reporting":    {ID: "svc-reporting", Secret: "reporting-secret", Perms: []string{"payments.read"}, Enabled: true},
	"simulated-client": {ID: "simulated-client", Secret: "simulated-client-secret", Perms: []string{"payments.read", "payments.write"}, Enabled: true},
}
