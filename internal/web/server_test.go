package web

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"image-compressor-go/internal/config"
	"image-compressor-go/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.DefaultConfig()
	srv := NewServer(cfg, logger.Discard(), afero.NewOsFs(), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, APIResponse) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestCompressRejectsInvalidDirectories(t *testing.T) {
	_, ts := newTestServer(t)
	dir := t.TempDir()

	resp, body := postJSON(t, ts.URL+"/api/compress", CompressRequest{
		InputDirectory:  filepath.Join(dir, "missing"),
		OutputDirectory: dir,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Input Error", body.Title)
	require.Equal(t, "Invalid input directory", body.Error)

	resp, body = postJSON(t, ts.URL+"/api/compress", CompressRequest{
		InputDirectory:  dir,
		OutputDirectory: filepath.Join(dir, "missing"),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Output Error", body.Title)
	require.Equal(t, "Invalid output directory", body.Error)
}

func TestCompressRejectsExplicitQualityOutOfRange(t *testing.T) {
	_, ts := newTestServer(t)
	in := t.TempDir()
	out := t.TempDir()
	writePNG(t, filepath.Join(in, "a.png"))

	for _, q := range []float64{0, -0.2, 1.5} {
		quality := q
		resp, body := postJSON(t, ts.URL+"/api/compress", CompressRequest{
			InputDirectory:  in,
			OutputDirectory: out,
			Quality:         &quality,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "quality %v", q)
		require.False(t, body.Success)
		require.Contains(t, body.Error, "invalid quality")
	}

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRejectedCompressReleasesRunSlot(t *testing.T) {
	_, ts := newTestServer(t)
	dir := t.TempDir()

	resp, _ := postJSON(t, ts.URL+"/api/compress", CompressRequest{
		InputDirectory:  filepath.Join(dir, "missing"),
		OutputDirectory: dir,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, status := getJSON(t, ts.URL+"/api/status")
	require.Equal(t, false, status["data"].(map[string]interface{})["running"])

	resp, body := postJSON(t, ts.URL+"/api/compress", CompressRequest{
		InputDirectory:  dir,
		OutputDirectory: dir,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, body.Success)

	require.Eventually(t, func() bool {
		_, status := getJSON(t, ts.URL+"/api/status")
		return status["data"].(map[string]interface{})["running"] == false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCompressRejectsBadBody(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/compress", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompressStreamsOutcomesOverWebSocket(t *testing.T) {
	_, ts := newTestServer(t)

	in := t.TempDir()
	out := t.TempDir()
	writePNG(t, filepath.Join(in, "a.png"))
	writePNG(t, filepath.Join(in, "b.png"))
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.gif"), nil, 0o644))

	wsURL := url.URL{Scheme: "ws", Host: strings.TrimPrefix(ts.URL, "http://"), Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello WSMessage
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "connected", hello.Type)

	quality := 0.4
	resp, body := postJSON(t, ts.URL+"/api/compress", CompressRequest{
		InputDirectory:  in,
		OutputDirectory: out,
		Quality:         &quality,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, body.Success)

	var logs []string
	var finished map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	for finished == nil {
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))

		switch msg.Type {
		case "file_outcome":
			var o OutcomeMessage
			require.NoError(t, json.Unmarshal(msg.Data, &o))
			logs = append(logs, o.Log)
		case "compression_finished":
			require.NoError(t, json.Unmarshal(msg.Data, &finished))
		}
	}

	require.Len(t, logs, 3)
	require.True(t, strings.HasPrefix(logs[0], "Before: a.png - "))
	require.True(t, strings.HasPrefix(logs[1], "Before: b.png - "))
	require.True(t, strings.HasPrefix(logs[2], "Error processing broken.gif: "))
	require.Equal(t, "Compression finished.\n", finished["log"])

	require.Eventually(t, func() bool {
		_, status := getJSON(t, ts.URL+"/api/status")
		data := status["data"].(map[string]interface{})
		return data["running"] == false
	}, 5*time.Second, 20*time.Millisecond)

	_, stats := getJSON(t, ts.URL+"/api/statistics")
	files := stats["data"].(map[string]interface{})["files"].(map[string]interface{})
	require.EqualValues(t, 2, files["compressed"])
	require.EqualValues(t, 1, files["errors"])

	_, err = os.Stat(filepath.Join(out, "a-min.png"))
	require.NoError(t, err)
}

func TestStopWithoutRun(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := postJSON(t, ts.URL+"/api/stop", map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "No operation in progress", body.Message)
}

func TestListDirectories(t *testing.T) {
	_, ts := newTestServer(t)

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	resp, body := getJSON(t, ts.URL+"/api/directories?path="+url.QueryEscape(dir))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := body["data"].([]interface{})
	require.Len(t, entries, 3)
	eligible := map[string]bool{}
	for _, e := range entries {
		m := e.(map[string]interface{})
		eligible[m["name"].(string)] = m["eligible"].(bool)
	}
	require.Equal(t, map[string]bool{"a.png": true, "note.txt": false, "sub": false}, eligible)

	resp, _ = getJSON(t, ts.URL+"/api/directories?path="+url.QueryEscape(dir+"/../etc"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQualityOptions(t *testing.T) {
	_, ts := newTestServer(t)

	_, body := getJSON(t, ts.URL+"/api/quality-options")
	data := body["data"].(map[string]interface{})
	require.Equal(t, 0.5, data["default"])
	require.Len(t, data["options"], 9)
}
