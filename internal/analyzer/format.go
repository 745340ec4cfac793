package analyzer

import (
	"fmt"

	semver "github.com/blang/semver/v4"

	"github.com/varalys/auditkit/internal/report"
)

var supportedFormat = semver.MustParse(report.FormatVersion)

// CheckFormat compares a report's format marker with the version this
// analyzer understands. Reports without a marker are accepted. A newer major
// version is reported but parsing still proceeds best-effort.
func CheckFormat(v string) error {
	if v == "" {
		return nil
	}
	got, err := semver.ParseTolerant(v)
	if err != nil {
		return fmt.Errorf("unrecognized report format version %q", v)
	}
	if got.Major > supportedFormat.Major {
		return fmt.Errorf("report format %s is newer than supported %s; results may be incomplete", got, supportedFormat)
	}
	return nil
}
