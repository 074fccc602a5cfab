package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

const (
	// TokenFile is the legacy token file name.
	TokenFile = ".adstoken"
	// TokenEnv is the environment variable holding the ADS token.
	TokenEnv = "ADS_API_TOKEN"
)

// Where a resolved token came from.
const (
	TokenFromFlag   = "flag"
	TokenFromEnv    = "env"
	TokenFromFile   = "file"
	TokenFromConfig = "config"
)

// ads.config.token = TOKEN  # optional comment
var tokenLineRegex = regexp.MustCompile(`^\s*ads\.config\.token\s*=\s*(\w*)\s*#?.*`)

// TokenDirs returns the directories searched for a token file, in order:
// the working directory, then the config directory.
func TokenDirs() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if dir := Dir(); dir != "" {
		dirs = append(dirs, dir)
	}
	return dirs
}

// ReadTokenFile returns the token from the first token file found in dirs,
// along with that file's path. Returns empty strings if no file exists.
// A file without a token line yields an empty token and its path.
func ReadTokenFile(dirs ...string) (string, string, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, TokenFile)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", "", fmt.Errorf("opening token file: %w", err)
		}

		token, err := scanToken(f)
		f.Close()
		if err != nil {
			return "", "", fmt.Errorf("reading %s: %w", path, err)
		}
		return token, path, nil
	}
	return "", "", nil
}

func scanToken(f *os.File) (string, error) {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := tokenLineRegex.FindStringSubmatch(scanner.Text()); m != nil {
			return m[1], nil
		}
	}
	return "", scanner.Err()
}

// WriteTokenFile writes token to the token file in dir, creating dir if
// needed, and returns the file path.
func WriteTokenFile(dir, token string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, TokenFile)
	content := fmt.Sprintf("ads.config.token = %s\n", token)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("writing token file: %w", err)
	}
	return path, nil
}

// ResolveToken picks the ADS token: flag, then environment, then the first
// token file in dirs, then the config file. Returns the token and its source,
// or two empty strings when no token is configured anywhere.
func ResolveToken(flagToken string, cfg *Config, dirs []string) (string, string, error) {
	if flagToken != "" {
		return flagToken, TokenFromFlag, nil
	}
	if token := os.Getenv(TokenEnv); token != "" {
		return token, TokenFromEnv, nil
	}
	token, _, err := ReadTokenFile(dirs...)
	if err != nil {
		return "", "", err
	}
	if token != "" {
		return token, TokenFromFile, nil
	}
	if cfg != nil && cfg.ADSToken != "" {
		return cfg.ADSToken, TokenFromConfig, nil
	}
	return "", "", nil
}
