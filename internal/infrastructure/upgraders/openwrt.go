package upgraders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"firmup/internal/domain/device"
	"firmup/internal/domain/firmware"
	"firmup/internal/shared/config"
	"firmup/internal/shared/goroutine"
	"firmup/internal/shared/logger"
)

const (
	// ChecksumFile holds the checksum of the last successfully applied
	// image on the device; its presence makes re-flashing idempotent.
	ChecksumFile = "/etc/firmup/firmware_checksum"

	remoteUploadDir = "/tmp"
	sysupgradePath  = "/sbin/sysupgrade"

	defaultReconnectDelay      = 180 * time.Second
	defaultReconnectRetryDelay = 20 * time.Second
	defaultReconnectMaxRetries = 35
	defaultUpgradeTimeout      = 90 * time.Second
)

// OpenWrtSchema declares the sysupgrade flags devices understand. The
// "-n" flag discards configuration and therefore conflicts with both
// config-preserving variants.
var OpenWrtSchema = &firmware.OptionsSchema{
	Options: map[string]firmware.OptionSpec{
		"c": {Title: "Attempt to preserve all changed files in /etc/ (-c)", Default: true},
		"o": {Title: "Attempt to preserve all changed files in /, except those from packages but including changed confs. (-o)"},
		"n": {Title: "Do not save configuration over reflash (-n)"},
		"u": {Title: "Skip from backup files that are equal to those in /rom (-u)"},
		"p": {Title: "Do not attempt to restore the partition table after flash. (-p)"},
		"k": {Title: "Include in backup a list of current installed packages at /etc/backup/installed_packages.txt (-k)"},
		"F": {Title: "Flash image even if image checks fail, this is dangerous! (-F)"},
	},
	Conflicts: [][2]string{{"n", "o"}, {"n", "c"}},
}

// Services stopped to free memory before a large upload, in stop order.
// They are not needed during the reflash and would be killed by it anyway;
// the restart path exists only for aborted upgrades.
var nonCriticalServices = []string{
	"uhttpd",
	"dnsmasq",
	"firmup-agent",
	"firmup-monitoring",
	"cron",
	"rpcd",
	"rssileds",
	"odhcpd",
	"log",
}

// On some OpenWrt versions sysupgrade returns a non-zero exit code even
// though the flash is carried out. These patterns recognize the known
// false positives so they are not reported as fatal reflash errors.
var reflashFalsePositives = []*regexp.Regexp{
	regexp.MustCompile(`Command failed: ubus call system sysupgrade \{ "prefix": "\\/tmp\\/root", "path": "[^"]*", "backup": "\\/tmp\\/sysupgrade\.tgz", "command": "\\/lib\\/upgrade\\/do_stage2", "options": \{ "save_partitions": 1 \} \}`),
	regexp.MustCompile(`Command failed: ubus call system sysupgrade \{ "prefix": "\\/tmp\\/root", "path": "[^"]*", "command": "\\/lib\\/upgrade\\/do_stage2", "options": \{ "save_partitions": 1 \} \}`),
}

func init() {
	Register(device.ConnectorOpenWrt, NewOpenWrt, OpenWrtSchema)
}

// OpenWrt drives the sysupgrade-based reflash protocol.
type OpenWrt struct {
	dev             *device.Device
	conn            device.Connection
	record          *device.DeviceConnection
	provider        device.Provider
	options         firmware.UpgradeOptions
	journal         Journal
	cfg             config.UpgraderConfig
	log             logger.Interface
	servicesStopped bool
}

// NewOpenWrt builds the OpenWrt protocol variant.
func NewOpenWrt(deps Deps) Upgrader {
	return &OpenWrt{
		dev:      deps.Device,
		conn:     deps.Connection,
		record:   deps.Record,
		provider: deps.Provider,
		options:  deps.Options,
		journal:  deps.Journal,
		cfg:      deps.Config,
		log:      deps.Logger,
	}
}

// Upgrade runs the full protocol. Each attempt re-enters from the top;
// the checksum probe keeps retries idempotent on a device that was
// already flashed by a previous attempt.
func (u *OpenWrt) Upgrade(ctx context.Context, image ImageSource) error {
	if err := u.testConnection(ctx); err != nil {
		return err
	}
	if err := u.verifyDeviceUUID(ctx); err != nil {
		return err
	}
	if err := u.testChecksum(ctx, image.Checksum); err != nil {
		return err
	}
	remotePath := path.Join(remoteUploadDir, path.Base(image.Name))
	if err := u.checkMemory(ctx, image.Size); err != nil {
		return err
	}
	if err := u.upload(ctx, image, remotePath); err != nil {
		return err
	}
	if err := u.testImage(ctx, remotePath); err != nil {
		return err
	}
	if err := u.reflash(ctx, remotePath); err != nil {
		return err
	}
	return u.writeChecksum(ctx, image.Checksum)
}

func (u *OpenWrt) testConnection(ctx context.Context) error {
	if err := u.conn.Connect(ctx); err != nil {
		return &firmware.RecoverableError{Cause: fmt.Errorf("connection failed: %w", err)}
	}
	u.journal.Log("Connection successful, starting upgrade...")
	return nil
}

// verifyDeviceUUID reads the device's configured identity and compares it
// with the inventory record. A mismatch means the address most probably
// points at a different physical unit.
func (u *OpenWrt) verifyDeviceUUID(ctx context.Context) error {
	output, exitCode, err := u.conn.Exec(ctx, "uci get firmup.http.uuid", device.WithExitCodes(0, 1))
	if err != nil {
		return fmt.Errorf("failed to read device UUID: %w", err)
	}
	configured := strings.TrimSpace(output)
	if exitCode == 1 || configured == "" {
		u.journal.Log("Could not read device UUID from configuration")
		return &firmware.AbortedError{Reason: "could not read device UUID"}
	}
	if parsed, err := uuid.Parse(configured); err == nil {
		configured = parsed.String()
	}
	expected := u.dev.UUID().String()
	if expected != configured {
		u.journal.Log(fmt.Sprintf("Device UUID mismatch: expected %q, found %q in device configuration", expected, configured))
		return &firmware.AbortedError{Reason: "device UUID mismatch"}
	}
	u.journal.Log("Device identity verified successfully")
	return nil
}

// testChecksum prevents the upgrade if an identical checksum marker is
// found on the device, which indicates the same image was already flashed.
func (u *OpenWrt) testChecksum(ctx context.Context, checksum string) error {
	_, exitCode, err := u.conn.Exec(ctx, "test -f "+ChecksumFile, device.WithExitCodes(0, 1))
	if err != nil {
		return fmt.Errorf("failed to probe checksum file: %w", err)
	}
	if exitCode != 0 {
		u.journal.Log("Image checksum file not found, proceeding with the upload of the new image...")
		return nil
	}
	u.journal.Log("Image checksum file found")
	output, _, err := u.conn.Exec(ctx, "cat "+ChecksumFile)
	if err != nil {
		return fmt.Errorf("failed to read checksum file: %w", err)
	}
	if strings.TrimSpace(output) == checksum {
		u.journal.Log("Firmware already upgraded previously. Identical checksum found in the filesystem, upgrade not needed.")
		_ = u.conn.Close()
		return firmware.ErrUpgradeNotNeeded
	}
	u.journal.Log("Checksum different, proceeding with the upload of the new image...")
	return nil
}

// checkMemory makes sure the image fits in available memory, stopping
// non-critical services as remediation when it does not.
func (u *OpenWrt) checkMemory(ctx context.Context, imageSize int64) error {
	if err := u.freeMemory(ctx); err != nil {
		return err
	}
	available, err := u.availableMemory(ctx)
	if err != nil {
		return err
	}
	if imageSize < available {
		return nil
	}
	u.journal.Log(fmt.Sprintf(
		"The image size (%.2f MiB) is greater than the available memory on the system (%.2f MiB).\n"+
			"For this reason the upgrade procedure will try to free up memory by stopping non critical services.\n"+
			"WARNING: it is recommended to reboot the device if the upgrade fails unexpectedly "+
			"because these services will not be restarted automatically.\n"+
			"NOTE: The reboot can be avoided if the status of the upgrade becomes \"aborted\" "+
			"because in this case the system will restart the services automatically.",
		mib(imageSize), mib(available)))
	if err := u.stopNonCriticalServices(ctx); err != nil {
		return err
	}
	if err := u.freeMemory(ctx); err != nil {
		return err
	}
	available, err = u.availableMemory(ctx)
	if err != nil {
		return err
	}
	if imageSize < available {
		u.journal.Log(fmt.Sprintf(
			"Enough available memory was freed up on the system (%.2f MiB)!\n"+
				"Proceeding to upload of the image file...", mib(available)))
		return nil
	}
	u.journal.Log(fmt.Sprintf(
		"There is still not enough available memory on the system (%.2f MiB).\n"+
			"Starting non critical services again...", mib(available)))
	if err := u.startNonCriticalServices(ctx); err != nil {
		return err
	}
	u.journal.Log("Non critical services started, aborting upgrade.")
	return &firmware.AbortedError{Reason: "not enough available memory"}
}

func mib(value int64) float64 {
	if value == 0 {
		return 0
	}
	return math.Round(float64(value)/1048576*100) / 100
}

// availableMemory reads MemAvailable from /proc/meminfo, falling back to
// MemFree on older systems.
func (u *OpenWrt) availableMemory(ctx context.Context) (int64, error) {
	output, exitCode, err := u.conn.Exec(ctx, "cat /proc/meminfo | grep MemAvailable", device.WithExitCodes(0, 1))
	if err != nil {
		return 0, fmt.Errorf("failed to read meminfo: %w", err)
	}
	if exitCode == 1 {
		output, _, err = u.conn.Exec(ctx, "cat /proc/meminfo | grep MemFree")
		if err != nil {
			return 0, fmt.Errorf("failed to read meminfo: %w", err)
		}
	}
	parts := strings.Fields(output)
	if len(parts) < 2 {
		return 0, fmt.Errorf("unexpected meminfo output: %q", output)
	}
	kib, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected meminfo value: %q", parts[1])
	}
	return kib * 1024, nil
}

// freeMemory reclaims what it can without stopping any service.
func (u *OpenWrt) freeMemory(ctx context.Context) error {
	if _, _, err := u.conn.Exec(ctx, "rm -rf /tmp/opkg-lists/"); err != nil {
		return err
	}
	_, _, err := u.conn.Exec(ctx, "sync && echo 3 > /proc/sys/vm/drop_caches")
	return err
}

func (u *OpenWrt) stopNonCriticalServices(ctx context.Context) error {
	for _, service := range nonCriticalServices {
		initd := "/etc/init.d/" + service
		if _, _, err := u.conn.Exec(ctx, fmt.Sprintf("test -f %s && %s stop", initd, initd), device.WithAnyExitCode()); err != nil {
			return err
		}
	}
	if _, _, err := u.conn.Exec(ctx, "test -f /sbin/wifi && /sbin/wifi down", device.WithAnyExitCode()); err != nil {
		return err
	}
	u.servicesStopped = true
	return nil
}

func (u *OpenWrt) startNonCriticalServices(ctx context.Context) error {
	for _, service := range nonCriticalServices {
		initd := "/etc/init.d/" + service
		if _, _, err := u.conn.Exec(ctx, fmt.Sprintf("test -f %s && %s start", initd, initd), device.WithAnyExitCode()); err != nil {
			return err
		}
	}
	if _, _, err := u.conn.Exec(ctx, "test -f /sbin/wifi && /sbin/wifi up", device.WithAnyExitCode()); err != nil {
		return err
	}
	u.servicesStopped = false
	return nil
}

// upload streams the image to the remote scratch path. Transfer errors
// are recoverable: the device state is unchanged and a retry re-enters
// from the top.
func (u *OpenWrt) upload(ctx context.Context, image ImageSource, remotePath string) error {
	content, err := image.Open()
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", image.Name, err)
	}
	defer content.Close()
	if err := u.conn.Upload(ctx, content, remotePath); err != nil {
		return &firmware.RecoverableError{Cause: err}
	}
	return nil
}

// testImage asks sysupgrade to validate the image without applying it.
func (u *OpenWrt) testImage(ctx context.Context, remotePath string) error {
	_, _, err := u.conn.Exec(ctx, fmt.Sprintf("%s --test %s", sysupgradePath, remotePath))
	if err != nil {
		u.journal.Log(err.Error())
		if u.servicesStopped {
			u.journal.Log("Starting non critical services again...")
			if restartErr := u.startNonCriticalServices(ctx); restartErr != nil {
				u.log.Warnw("failed to restart non critical services", "error", restartErr)
			}
		}
		_ = u.conn.Close()
		return &firmware.AbortedError{Reason: err.Error()}
	}
	u.journal.Log("Sysupgrade test passed successfully, proceeding with the upgrade operation...")
	return nil
}

// UpgradeCommand builds the reflash invocation from the declared options.
func (u *OpenWrt) UpgradeCommand(remotePath string) string {
	flags := OpenWrtSchema.Flags(u.options)
	return fmt.Sprintf("%s -v %s %s", sysupgradePath, strings.Join(flags, " "), remotePath)
}

// reflash invokes sysupgrade through a watchdogged background execution:
// the remote process reboots the device and may never return a response
// on the original channel, so the command runs with an independent hard
// timeout and reports failures through a side channel. A failure surfaced
// there is fatal: the device state after a failed reflash is unknown and
// must not be retried blindly.
func (u *OpenWrt) reflash(ctx context.Context, remotePath string) error {
	_ = u.conn.Close()
	u.journal.Log("Upgrade operation in progress...")

	timeout := u.upgradeTimeout()
	reflashCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	failures := make(chan error, 1)
	goroutine.SafeGo(u.log, "openwrt-reflash", func() {
		failures <- u.invokeReflashCommand(reflashCtx, remotePath, timeout)
	})

	select {
	case err := <-failures:
		if err != nil {
			return fmt.Errorf("reflash failed: %w", err)
		}
	case <-time.After(timeout):
		// No response within the timeout: the device is most likely
		// rebooting into the new image already.
	}

	u.journal.Log(fmt.Sprintf("SSH connection closed, will wait %.0f seconds before attempting to reconnect...",
		u.reconnectDelay().Seconds()))
	select {
	case <-time.After(u.reconnectDelay()):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (u *OpenWrt) invokeReflashCommand(ctx context.Context, remotePath string, timeout time.Duration) error {
	if err := u.conn.Connect(ctx); err != nil {
		return fmt.Errorf("failed to reconnect for reflash: %w", err)
	}
	defer u.conn.Close()

	// remove the persistent config checksum if present, otherwise the
	// device will not download its configuration again after the reflash
	_, _, _ = u.conn.Exec(ctx, "rm /etc/firmup/checksum 2> /dev/null", device.WithExitCodes(0, -1, 1))

	output, _, err := u.conn.Exec(ctx, u.UpgradeCommand(remotePath),
		device.WithTimeout(timeout), device.WithExitCodes(0, -1))
	if err != nil {
		for _, pattern := range reflashFalsePositives {
			if pattern.MatchString(err.Error()) {
				return nil
			}
		}
		return err
	}
	if output != "" {
		u.journal.Log(output)
	}
	return nil
}

// writeChecksum polls for the device to come back after the reflash and
// records the new checksum marker. Candidate addresses are re-resolved on
// every attempt because they may change mid-sequence.
func (u *OpenWrt) writeChecksum(ctx context.Context, checksum string) error {
	maxRetries := u.reconnectMaxRetries()
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, _, err := u.provider.GetWorkingConnection(ctx, u.dev)
		if err != nil {
			addresses := u.conn.Addresses()
			var noConn *device.NoWorkingConnectionError
			if errors.As(err, &noConn) && noConn.Last != nil {
				addresses = noConn.Last.Addresses()
			}
			u.logReconnectAttempt(addresses, attempt)
			u.journal.Log(fmt.Sprintf("Device not reachable yet (%s).\nretrying in %.0f seconds...",
				err.Error(), u.reconnectRetryDelay().Seconds()))
			select {
			case <-time.After(u.reconnectRetryDelay()):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		u.logReconnectAttempt(conn.Addresses(), attempt)
		u.journal.Log("Connected! Writing checksum file to " + ChecksumFile)
		if _, _, err := conn.Exec(ctx, "mkdir -p "+path.Dir(ChecksumFile)); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to create checksum directory: %w", err)
		}
		if _, _, err := conn.Exec(ctx, fmt.Sprintf("echo %s > %s", checksum, ChecksumFile)); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to write checksum file: %w", err)
		}
		_ = conn.Close()
		u.journal.Log("Upgrade completed successfully.")
		return nil
	}
	return &firmware.ReconnectionError{Reason: "giving up, device not reachable anymore after upgrade"}
}

func (u *OpenWrt) logReconnectAttempt(addresses []string, attempt int) {
	u.journal.Log(fmt.Sprintf("Trying to reconnect to device at %s (attempt n.%d)...",
		strings.Join(addresses, ", "), attempt))
}

func (u *OpenWrt) reconnectDelay() time.Duration {
	if u.cfg.ReconnectDelay > 0 {
		return u.cfg.ReconnectDelay
	}
	return defaultReconnectDelay
}

func (u *OpenWrt) reconnectRetryDelay() time.Duration {
	if u.cfg.ReconnectRetryDelay > 0 {
		return u.cfg.ReconnectRetryDelay
	}
	return defaultReconnectRetryDelay
}

func (u *OpenWrt) reconnectMaxRetries() int {
	if u.cfg.ReconnectMaxRetries > 0 {
		return u.cfg.ReconnectMaxRetries
	}
	return defaultReconnectMaxRetries
}

func (u *OpenWrt) upgradeTimeout() time.Duration {
	if u.cfg.UpgradeTimeout > 0 {
		return u.cfg.UpgradeTimeout
	}
	return defaultUpgradeTimeout
}
