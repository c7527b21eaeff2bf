package env

const (
	// Prefix is the prefix of every cbrates environment variable
	Prefix = "CBRATES"

	// DBURLSuffix names the Postgres DSN variable, following Prefix
	DBURLSuffix = "_DB_URL"
)
