// Package provisioner defines the port interface for the external
// database-as-a-service API that creates per-firm databases.
package provisioner

import "context"

// Database holds the coordinates of a newly created database. The connection
// string is plaintext here; callers must seal it before persisting.
type Database struct {
	Host       string
	Name       string
	ConnString string
}

// Provisioner creates physical databases. Creation is an external
// side-effecting call; callers guard it with the firm's persisted
// provisioning state so it runs at most once per firm.
type Provisioner interface {
	CreateDatabase(ctx context.Context, firmCode string) (*Database, error)
}
