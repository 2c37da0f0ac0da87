// Package mysql implements the sdb driver capability over the MySQL
// client protocol (go-sql-driver/mysql).
//
// Connections are held at the database/sql/driver level so the sdb
// pool owns them directly, without database/sql's own pooling in
// between. Statements without parameters use the text protocol;
// parameterised statements use the binary prepared-statement
// protocol, and the placeholder count the server reports for the
// prepared statement is checked against the parameters before it runs.
//
// Configuration keys and defaults:
//   - host: 127.0.0.1
//   - port: 3306
//   - user: root
//   - password: ""
//   - database: "" (no default schema)
//   - charset: utf8mb4
//
// Register with a Manager:
//
//	m.RegisterDriver(ctx, mysql.NewDriver())
package mysql
