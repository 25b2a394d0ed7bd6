package render

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestPackagerSkipsFailingSubjects(t *testing.T) {
	source := func(_ context.Context, subjectID string) ([]byte, error) {
		if subjectID == "B" {
			return nil, errors.New("no active credential")
		}
		return []byte("<html>" + subjectID + "</html>"), nil
	}

	var buf bytes.Buffer
	report, err := NewPackager().Package(context.Background(), &buf, []string{"A", "B", "C/../x"}, source)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "C/../x"}, report.Included)
	require.Equal(t, []string{"B"}, report.Skipped)
	require.Len(t, multierr.Errors(report.Err), 1)
	require.ErrorContains(t, report.Err, "B: no active credential")

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	require.Equal(t, "A-card.html", zr.File[0].Name)
	require.Equal(t, "C_.._x-card.html", zr.File[1].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "<html>A</html>", string(body))
}

func TestPackagerStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := NewPackager().Package(ctx, &buf, []string{"A"}, func(context.Context, string) ([]byte, error) {
		return []byte("x"), nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEntryName(t *testing.T) {
	require.Equal(t, "subject-1-card.html", EntryName("subject-1"))
	require.Equal(t, "a_b-card.html", EntryName("a_b"))
	require.Regexp(t, `^a_b-[0-9a-f]{8}-card\.html$`, EntryName("a b"))

	ids := []string{"a_b", "a/b", "a b", "a.b", "../a_b"}
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		name := EntryName(id)
		prev, taken := names[name]
		require.False(t, taken, "%q and %q share entry %s", prev, id, name)
		names[name] = id
		require.NotContains(t, name, "/")
	}
}

func TestPackagerKeepsSanitisedCollisionsApart(t *testing.T) {
	var buf bytes.Buffer
	report, err := NewPackager().Package(context.Background(), &buf, []string{"a/b", "a_b"}, func(_ context.Context, id string) ([]byte, error) {
		return []byte("<html>" + id + "</html>"), nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a/b", "a_b"}, report.Included)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	require.NotEqual(t, zr.File[0].Name, zr.File[1].Name)
}
