package app

import (
    "errors"
    "os"
    "strings"

    "github.com/joho/godotenv"
)

// LoadEnvFiles loads one or more dotenv files into the process environment.
// Variables already set (non-empty) in the environment are never replaced;
// among the files, later ones override earlier ones. Missing files are
// skipped.
func LoadEnvFiles(paths ...string) error {
    preset := map[string]bool{}
    for _, kv := range os.Environ() {
        if k, v, ok := strings.Cut(kv, "="); ok && v != "" {
            preset[k] = true
        }
    }
    for _, p := range paths {
        if strings.TrimSpace(p) == "" {
            continue
        }
        vars, err := godotenv.Read(p)
        if err != nil {
            if errors.Is(err, os.ErrNotExist) {
                continue
            }
            return err
        }
        for k, v := range vars {
            if preset[k] {
                continue
            }
            if err := os.Setenv(k, v); err != nil {
                return err
            }
        }
    }
    return nil
}
