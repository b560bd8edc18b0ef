package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// withBuild подменяет значения, которые в релизной сборке задаёт -ldflags.
func withBuild(t *testing.T, v, c, d string) {
	t.Helper()
	prevVersion, prevCommit, prevDate := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() {
		version, commit, date = prevVersion, prevCommit, prevDate
	})
}

func TestDefaultsForLocalBuild(t *testing.T) {
	v, c, d := Info()
	require.NotEmpty(t, v)
	require.NotEmpty(t, c)
	require.NotEmpty(t, d)
}

func TestReleaseBuildValues(t *testing.T) {
	withBuild(t, "v1.4.0", "9f2c1ab", "2025-06-09T08:30:00Z")

	v, c, d := Info()
	require.Equal(t, "v1.4.0", v)
	require.Equal(t, "9f2c1ab", c)
	require.Equal(t, "2025-06-09T08:30:00Z", d)

	require.Equal(t, v, GetVersion())
	require.Equal(t, c, GetCommit())
	require.Equal(t, d, GetDate())
	require.Equal(t, "version=v1.4.0 commit=9f2c1ab date=2025-06-09T08:30:00Z", String())
}

func TestFieldsForStartupLog(t *testing.T) {
	withBuild(t, "v1.4.0", "9f2c1ab", "2025-06-09")

	fields := Fields()
	require.Len(t, fields, 3)
	require.Equal(t, "v1.4.0", fields["version"])
	require.Equal(t, "9f2c1ab", fields["commit"])
	require.Equal(t, "2025-06-09", fields["built"])
}
