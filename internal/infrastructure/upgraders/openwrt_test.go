package upgraders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmup/internal/domain/device"
	"firmup/internal/domain/firmware"
	"firmup/internal/shared/config"
	"firmup/internal/shared/logger"
)

// fakeDeviceConn scripts the remote side of the protocol: it answers the
// probe commands from its fields and records everything executed.
type fakeDeviceConn struct {
	mu sync.Mutex

	uuid           string
	storedChecksum string
	memKiB         []int64
	memIdx         int
	connectErrs    []error
	uploadErr      error
	testImageErr   error
	reflashErr     error
	addresses      []string

	connectCalls    int
	closeCalls      int
	uploadedPaths   []string
	writtenChecksum string
	execLog         []string
}

func (c *fakeDeviceConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCalls++
	if c.connectCalls <= len(c.connectErrs) {
		return c.connectErrs[c.connectCalls-1]
	}
	return nil
}

func (c *fakeDeviceConn) Exec(ctx context.Context, command string, opts ...device.ExecOption) (string, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execLog = append(c.execLog, command)

	switch {
	case command == "uci get firmup.http.uuid":
		if c.uuid == "" {
			return "", 1, nil
		}
		return c.uuid + "\n", 0, nil
	case command == "test -f "+ChecksumFile:
		if c.storedChecksum == "" {
			return "", 1, nil
		}
		return "", 0, nil
	case command == "cat "+ChecksumFile:
		return c.storedChecksum + "\n", 0, nil
	case command == "cat /proc/meminfo | grep MemAvailable":
		kib := c.memKiB[len(c.memKiB)-1]
		if c.memIdx < len(c.memKiB) {
			kib = c.memKiB[c.memIdx]
			c.memIdx++
		}
		return fmt.Sprintf("MemAvailable:    %d kB", kib), 0, nil
	case strings.HasPrefix(command, "/sbin/sysupgrade --test"):
		if c.testImageErr != nil {
			return "", 1, c.testImageErr
		}
		return "", 0, nil
	case strings.HasPrefix(command, "/sbin/sysupgrade -v"):
		if c.reflashErr != nil {
			return "", 1, c.reflashErr
		}
		return "", 0, nil
	case strings.HasPrefix(command, "echo ") && strings.Contains(command, ChecksumFile):
		c.writtenChecksum = strings.Fields(command)[1]
		return "", 0, nil
	default:
		// drop-cache helpers, service stop/start, mkdir, rm
		return "", 0, nil
	}
}

func (c *fakeDeviceConn) Upload(ctx context.Context, content io.Reader, remotePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploadErr != nil {
		return c.uploadErr
	}
	c.uploadedPaths = append(c.uploadedPaths, remotePath)
	return nil
}

func (c *fakeDeviceConn) Addresses() []string {
	return c.addresses
}

func (c *fakeDeviceConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return nil
}

func (c *fakeDeviceConn) executed(substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cmd := range c.execLog {
		if strings.Contains(cmd, substr) {
			return true
		}
	}
	return false
}

// fakeProvider fails a configured number of reconnection attempts before
// handing the connection back.
type fakeProvider struct {
	mu       sync.Mutex
	conn     *fakeDeviceConn
	failures int
	calls    int
}

func (p *fakeProvider) GetWorkingConnection(ctx context.Context, dev *device.Device) (device.Connection, *device.DeviceConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return nil, nil, &device.NoWorkingConnectionError{}
	}
	return p.conn, nil, nil
}

type fakeJournal struct {
	mu    sync.Mutex
	lines []string
}

func (j *fakeJournal) Log(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lines = append(j.lines, line)
}

func (j *fakeJournal) contains(substr string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, line := range j.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func testUpgraderConfig() config.UpgraderConfig {
	return config.UpgraderConfig{
		ReconnectDelay:      time.Millisecond,
		ReconnectRetryDelay: time.Millisecond,
		ReconnectMaxRetries: 3,
		UpgradeTimeout:      200 * time.Millisecond,
	}
}

func testDevice(t *testing.T) *device.Device {
	t.Helper()
	dev, err := device.NewDevice("edge-router-1", 1, "TP-Link TL-WDR4300 v1", "openwrt-23.05", uuid.New(),
		func() (string, error) { return "dev_test", nil })
	require.NoError(t, err)
	return dev
}

func testImageSource() ImageSource {
	return ImageSource{
		Name:     "openwrt-ar71xx-generic-tl-wdr4300-v1.bin",
		Size:     4 * 1024 * 1024,
		Checksum: "feedc0de",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("firmware payload")), nil
		},
	}
}

func newTestUpgrader(dev *device.Device, conn *fakeDeviceConn, provider *fakeProvider, journal *fakeJournal, opts firmware.UpgradeOptions) Upgrader {
	return NewOpenWrt(Deps{
		Device:     dev,
		Connection: conn,
		Provider:   provider,
		Options:    opts,
		Journal:    journal,
		Config:     testUpgraderConfig(),
		Logger:     logger.NewLogger(),
	})
}

func TestOpenWrtUpgrade_Succeeds(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:      dev.UUID().String(),
		memKiB:    []int64{64 * 1024},
		addresses: []string{"10.0.0.2"},
	}
	provider := &fakeProvider{conn: conn}
	journal := &fakeJournal{}

	u := newTestUpgrader(dev, conn, provider, journal, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.NoError(t, err)
	require.Len(t, conn.uploadedPaths, 1)
	assert.Equal(t, "/tmp/openwrt-ar71xx-generic-tl-wdr4300-v1.bin", conn.uploadedPaths[0])
	assert.True(t, conn.executed("/sbin/sysupgrade --test"))
	assert.True(t, conn.executed("/sbin/sysupgrade -v"))
	assert.True(t, conn.executed("rm /etc/firmup/checksum"))
	assert.Equal(t, "feedc0de", conn.writtenChecksum)
	assert.True(t, journal.contains("Upgrade completed successfully."))
}

func TestOpenWrtUpgrade_SkipsWhenChecksumMatches(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:           dev.UUID().String(),
		storedChecksum: "feedc0de",
		memKiB:         []int64{64 * 1024},
	}
	journal := &fakeJournal{}

	u := newTestUpgrader(dev, conn, &fakeProvider{conn: conn}, journal, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.ErrorIs(t, err, firmware.ErrUpgradeNotNeeded)
	assert.Empty(t, conn.uploadedPaths)
	assert.False(t, conn.executed("/sbin/sysupgrade"))
	assert.GreaterOrEqual(t, conn.closeCalls, 1)
	assert.True(t, journal.contains("upgrade not needed"))
}

func TestOpenWrtUpgrade_ProceedsWhenChecksumDiffers(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:           dev.UUID().String(),
		storedChecksum: "0ldimage",
		memKiB:         []int64{64 * 1024},
		addresses:      []string{"10.0.0.2"},
	}
	journal := &fakeJournal{}

	u := newTestUpgrader(dev, conn, &fakeProvider{conn: conn}, journal, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.NoError(t, err)
	assert.Len(t, conn.uploadedPaths, 1)
	assert.True(t, journal.contains("Checksum different"))
}

func TestOpenWrtUpgrade_AbortsOnUUIDMismatch(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:   uuid.NewString(),
		memKiB: []int64{64 * 1024},
	}
	journal := &fakeJournal{}

	u := newTestUpgrader(dev, conn, &fakeProvider{conn: conn}, journal, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.Error(t, err)
	assert.True(t, firmware.IsAborted(err))
	assert.True(t, journal.contains("Device UUID mismatch"))
	assert.Empty(t, conn.uploadedPaths)
}

func TestOpenWrtUpgrade_AbortsWhenUUIDUnreadable(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{uuid: "", memKiB: []int64{64 * 1024}}

	u := newTestUpgrader(dev, conn, &fakeProvider{conn: conn}, &fakeJournal{}, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.Error(t, err)
	assert.True(t, firmware.IsAborted(err))
}

func TestOpenWrtUpgrade_FreesMemoryByStoppingServices(t *testing.T) {
	dev := testDevice(t)
	// first probe is short on memory, second (after stopping services)
	// has enough
	conn := &fakeDeviceConn{
		uuid:      dev.UUID().String(),
		memKiB:    []int64{1024, 64 * 1024},
		addresses: []string{"10.0.0.2"},
	}
	journal := &fakeJournal{}

	u := newTestUpgrader(dev, conn, &fakeProvider{conn: conn}, journal, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.NoError(t, err)
	assert.True(t, conn.executed("/etc/init.d/uhttpd stop"))
	assert.True(t, conn.executed("/sbin/wifi down"))
	assert.True(t, journal.contains("stopping non critical services"))
	assert.True(t, journal.contains("Enough available memory was freed up"))
}

func TestOpenWrtUpgrade_AbortsWhenMemoryCannotBeFreed(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:   dev.UUID().String(),
		memKiB: []int64{1024, 1024},
	}
	journal := &fakeJournal{}

	u := newTestUpgrader(dev, conn, &fakeProvider{conn: conn}, journal, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.Error(t, err)
	assert.True(t, firmware.IsAborted(err))
	// services are restarted before aborting so the device stays usable
	assert.True(t, conn.executed("/etc/init.d/uhttpd start"))
	assert.True(t, conn.executed("/sbin/wifi up"))
	assert.True(t, journal.contains("aborting upgrade"))
	assert.Empty(t, conn.uploadedPaths)
}

func TestOpenWrtUpgrade_UploadFailureIsRecoverable(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:      dev.UUID().String(),
		memKiB:    []int64{64 * 1024},
		uploadErr: errors.New("broken pipe"),
	}

	u := newTestUpgrader(dev, conn, &fakeProvider{conn: conn}, &fakeJournal{}, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.Error(t, err)
	assert.True(t, firmware.IsRecoverable(err))
}

func TestOpenWrtUpgrade_ConnectFailureIsRecoverable(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:        dev.UUID().String(),
		connectErrs: []error{errors.New("connection refused")},
	}

	u := newTestUpgrader(dev, conn, &fakeProvider{conn: conn}, &fakeJournal{}, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.Error(t, err)
	assert.True(t, firmware.IsRecoverable(err))
}

func TestOpenWrtUpgrade_AbortsOnImageTestFailure(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:         dev.UUID().String(),
		memKiB:       []int64{1024, 64 * 1024},
		testImageErr: errors.New("Image check 'platform_check_image' failed."),
	}
	journal := &fakeJournal{}

	u := newTestUpgrader(dev, conn, &fakeProvider{conn: conn}, journal, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.Error(t, err)
	assert.True(t, firmware.IsAborted(err))
	// services stopped for memory remediation come back before aborting
	assert.True(t, conn.executed("/etc/init.d/uhttpd start"))
	assert.True(t, journal.contains("Starting non critical services again"))
}

func TestOpenWrtUpgrade_GivesUpWhenDeviceNeverReturns(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:      dev.UUID().String(),
		memKiB:    []int64{64 * 1024},
		addresses: []string{"10.0.0.2"},
	}
	provider := &fakeProvider{conn: conn, failures: 1000}
	journal := &fakeJournal{}

	u := newTestUpgrader(dev, conn, provider, journal, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.Error(t, err)
	assert.True(t, firmware.IsReconnectionFailure(err))
	assert.Equal(t, 3, provider.calls)
	assert.Empty(t, conn.writtenChecksum)
	assert.True(t, journal.contains("retrying in"))
}

func TestOpenWrtUpgrade_WritesChecksumAfterReconnectRetries(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:      dev.UUID().String(),
		memKiB:    []int64{64 * 1024},
		addresses: []string{"10.0.0.2"},
	}
	provider := &fakeProvider{conn: conn, failures: 2}
	journal := &fakeJournal{}

	u := newTestUpgrader(dev, conn, provider, journal, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.NoError(t, err)
	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, "feedc0de", conn.writtenChecksum)
}

func TestOpenWrtUpgrade_IgnoresKnownReflashFalsePositive(t *testing.T) {
	dev := testDevice(t)
	falsePositive := errors.New(`Command failed: ubus call system sysupgrade { "prefix": "\/tmp\/root", "path": "\/tmp\/firmware.bin", "backup": "\/tmp\/sysupgrade.tgz", "command": "\/lib\/upgrade\/do_stage2", "options": { "save_partitions": 1 } }`)
	conn := &fakeDeviceConn{
		uuid:       dev.UUID().String(),
		memKiB:     []int64{64 * 1024},
		addresses:  []string{"10.0.0.2"},
		reflashErr: falsePositive,
	}
	provider := &fakeProvider{conn: conn}

	u := newTestUpgrader(dev, conn, provider, &fakeJournal{}, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.NoError(t, err)
	assert.Equal(t, "feedc0de", conn.writtenChecksum)
}

func TestOpenWrtUpgrade_ReflashFailureIsFatal(t *testing.T) {
	dev := testDevice(t)
	conn := &fakeDeviceConn{
		uuid:       dev.UUID().String(),
		memKiB:     []int64{64 * 1024},
		addresses:  []string{"10.0.0.2"},
		reflashErr: errors.New("sysupgrade: partition table mismatch"),
	}

	u := newTestUpgrader(dev, conn, &fakeProvider{conn: conn}, &fakeJournal{}, nil)
	err := u.Upgrade(context.Background(), testImageSource())

	require.Error(t, err)
	assert.False(t, firmware.IsRecoverable(err))
	assert.False(t, firmware.IsAborted(err))
	assert.Contains(t, err.Error(), "reflash failed")
	assert.Empty(t, conn.writtenChecksum)
}

func TestOpenWrtUpgradeCommand_RendersOptions(t *testing.T) {
	dev := testDevice(t)
	u := newTestUpgrader(dev, &fakeDeviceConn{}, &fakeProvider{}, &fakeJournal{},
		firmware.UpgradeOptions{"n": true, "c": false}).(*OpenWrt)

	cmd := u.UpgradeCommand("/tmp/fw.bin")
	assert.Equal(t, "/sbin/sysupgrade -v -n /tmp/fw.bin", cmd)
}

func TestValidateOptions(t *testing.T) {
	assert.NoError(t, ValidateOptions(device.ConnectorOpenWrt, nil))
	assert.NoError(t, ValidateOptions(device.ConnectorOpenWrt, firmware.UpgradeOptions{"n": true, "c": false, "o": false}))

	err := ValidateOptions(device.ConnectorOpenWrt, firmware.UpgradeOptions{"n": true, "o": true})
	require.Error(t, err)

	err = ValidateOptions("unknown-connector", firmware.UpgradeOptions{"n": true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed with this upgrader")
}
