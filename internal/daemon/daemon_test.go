package daemon

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ChlorophyllA/skin2/internal/config"
	"github.com/ChlorophyllA/skin2/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Data.HospitalDB = filepath.Join(dir, "data.db")
	cfg.Data.SkinDB = filepath.Join(dir, "data_skin.db")
	return cfg
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	previous := zerolog.GlobalLevel()
	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)
	t.Cleanup(func() {
		log.Close()
		zerolog.SetGlobalLevel(previous)
	})
	return log
}

func get(t *testing.T, d *Daemon, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	d.GetServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestNew(t *testing.T) {
	d, err := New(testConfig(t), testLogger(t), Options{})
	require.NoError(t, err)

	assert.NotNil(t, d.GetStore())
	assert.NotNil(t, d.GetServer())
	assert.Equal(t, []string{ChatChannel, WebSocketChannel}, d.GetRegistry().Names())
	assert.Nil(t, d.sweeper, "sweeper is opt-in")
	assert.Nil(t, d.watcher)
	assert.Nil(t, d.lifecycle)

	// no data: only the chat and catalog routes are mounted
	assert.Nil(t, d.hospitals)
	assert.Nil(t, d.skin)
	code, _ := get(t, d, "/api/levels")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = get(t, d, "/api/disease/BCC")
	assert.Equal(t, http.StatusOK, code)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chat.HistoryLimit = 3

	_, err := New(cfg, testLogger(t), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	_, err = New(nil, testLogger(t), Options{})
	assert.Error(t, err)
}

func TestNew_ImportsHospitalCSV(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.HospitalSource = filepath.Join(t.TempDir(), "hospitals.csv")
	csv := "省份,城市,医院名称,医院等级,重点科室\n" +
		"广东省,广州市,中山大学附属第一医院,三级甲等,皮肤科\n" +
		"北京市,北京市,北京协和医院,三级甲等,皮肤科\n"
	require.NoError(t, os.WriteFile(cfg.Data.HospitalSource, []byte(csv), 0644))

	d, err := New(cfg, testLogger(t), Options{})
	require.NoError(t, err)
	defer d.closeData()

	require.NotNil(t, d.hospitals)
	code, body := get(t, d, "/api/levels")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["三级甲等"]`, body)
}

func TestNew_ImportsHospitalWorkbook(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.HospitalSource = filepath.Join(t.TempDir(), "全国医院信息.xlsx")

	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]any{"省份", "城市", "医院名称", "医院等级"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]any{"广东省", "深圳市", "深圳市人民医院", "三级甲等"}))
	require.NoError(t, book.SaveAs(cfg.Data.HospitalSource))

	d, err := New(cfg, testLogger(t), Options{})
	require.NoError(t, err)
	defer d.closeData()

	require.NotNil(t, d.hospitals)
	code, body := get(t, d, "/api/cities?province=%E5%B9%BF%E4%B8%9C%E7%9C%81")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["深圳市"]`, body)
}

func TestNew_MissingHospitalSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.HospitalSource = filepath.Join(t.TempDir(), "missing.xlsx")

	_, err := New(cfg, testLogger(t), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open hospital source")
}

func TestNew_SweeperWhenTTLSet(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chat.SessionIdleTTL = time.Hour

	d, err := New(cfg, testLogger(t), Options{})
	require.NoError(t, err)
	assert.NotNil(t, d.sweeper)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	pidFile := filepath.Join(t.TempDir(), "skin2.pid")

	d, err := New(cfg, testLogger(t), Options{PIDFile: pidFile})
	require.NoError(t, err)

	assert.False(t, d.Status().Running)
	assert.Equal(t, time.Duration(0), d.Status().Uptime)

	require.NoError(t, d.Start())
	assert.True(t, IsRunning(pidFile))
	assert.Error(t, d.Start(), "second start is rejected")

	url := "http://" + cfg.Addr() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	status := d.Status()
	assert.True(t, status.Running)
	assert.Positive(t, status.Uptime)

	require.NoError(t, d.Stop())
	assert.False(t, d.Status().Running)
	_, err = os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, d.Stop(), "second stop is rejected")
}

func TestDaemonStart_RefusedKeepsOtherPIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "skin2.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))

	d, err := New(testConfig(t), testLogger(t), Options{PIDFile: pidFile})
	require.NoError(t, err)

	err = d.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	// the cleanup serve runs after a failed start
	assert.NoError(t, d.Stop())
	assert.True(t, IsRunning(pidFile))
}

func TestDaemonStart_ConcurrentReload(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg, testLogger(t), Options{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			next := *cfg
			d.applyConfig(&next)
		}
	}()

	require.NoError(t, d.Start())
	<-done
	require.NoError(t, d.Stop())
}

func TestApplyConfig_LogLevel(t *testing.T) {
	d, err := New(testConfig(t), testLogger(t), Options{})
	require.NoError(t, err)

	next := testConfig(t)
	next.Logging.Level = "debug"
	d.applyConfig(next)

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.Same(t, next, d.GetConfig())
}
