package auditkit

import (
	"errors"
	"os"

	"github.com/varalys/auditkit/internal/config"
)

// loadConfigs returns the local and global file configs. An explicit
// --config path replaces the local lookup. Missing files yield empty configs;
// a file that exists but does not parse is an error.
func loadConfigs(root string) (local, global config.FileConfig, err error) {
	if c, gerr := config.LoadGlobal(); gerr == nil {
		global = c
	} else if p := config.GlobalPath(); p != "" && fileExists(p) {
		return local, global, gerr
	}
	if flagConfigPath != "" {
		local, err = config.LoadFile(flagConfigPath)
		return local, global, err
	}
	if c, lerr := config.LoadLocal(root); lerr == nil {
		local = c
	} else if !isNoConfig(lerr) {
		return local, global, lerr
	}
	return local, global, nil
}

func pickString(cli string, local, global *string) string {
	if cli != "" {
		return cli
	}
	if local != nil && *local != "" {
		return *local
	}
	if global != nil && *global != "" {
		return *global
	}
	return ""
}

func pickInt(cli int, local, global *int) int {
	if cli != 0 {
		return cli
	}
	if local != nil && *local != 0 {
		return *local
	}
	if global != nil && *global != 0 {
		return *global
	}
	return 0
}

func pickInt64(cli int64, local, global *int64) int64 {
	if cli != 0 {
		return cli
	}
	if local != nil && *local != 0 {
		return *local
	}
	if global != nil && *global != 0 {
		return *global
	}
	return 0
}

func pickFloat(cli float64, local, global *float64) float64 {
	if cli != 0 {
		return cli
	}
	if local != nil && *local != 0 {
		return *local
	}
	if global != nil && *global != 0 {
		return *global
	}
	return 0
}

func pickBool(cli bool, local, global *bool) bool {
	if cli {
		return true
	}
	if local != nil {
		return *local
	}
	if global != nil {
		return *global
	}
	return false
}

func isNoConfig(err error) bool { return errors.Is(err, config.ErrNoConfig) }

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}
