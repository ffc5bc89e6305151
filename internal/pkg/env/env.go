package env

import (
	"os"

	"github.com/joho/godotenv"
)

var Env map[string]string

// GetEnv returns the configured value for key, preferring the loaded .env
// file over the process environment, falling back to def.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile loads the first .env file found relative to the working
// directory. Missing files are not fatal: containerized deployments pass
// everything through the process environment instead.
func SetupEnvFile() {
	envFiles := []string{
		".env",          // project root
		"../../.env",    // from cmd/kampai
		"../../../.env", // deeper nesting (tests)
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}

	Env = map[string]string{}
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
