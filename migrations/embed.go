// Package migrations embeds all SQL migration files so the binary is
// self-contained and does not depend on a working directory containing
// ./migrations/.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
