package app

import (
    "os"
    "strings"
)

// EnvPrefix starts the name of every environment variable read into Config.
const EnvPrefix = "CORPUSCLEAN_"

// EnvName maps an option name such as "cache.maxAge" to its environment
// variable, CORPUSCLEAN_CACHE_MAXAGE.
func EnvName(option string) string {
    return EnvPrefix + strings.ToUpper(strings.ReplaceAll(option, ".", "_"))
}

// ApplyEnvOverrides overrides cfg fields with environment variables that are
// set and non-empty. It runs after ApplyFileConfig so that the environment
// beats the config file, and before flags, which beat both.
func ApplyEnvOverrides(cfg *Config) error {
    if cfg == nil { return nil }
    for _, name := range OptionNames() {
        v, ok := os.LookupEnv(EnvName(name))
        if !ok || strings.TrimSpace(v) == "" {
            continue
        }
        if err := SetOption(cfg, name, v); err != nil {
            return err
        }
    }
    return nil
}
