//go:build linux

package sensehat

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"codeberg.org/avlin/sensehatd/internal/errors"
	"codeberg.org/avlin/sensehatd/internal/logger"
)

const (
	framebufferName = "RPi-Sense FB"
	joystickName    = "Raspberry Pi Sense HAT Joystick"

	sysGraphicsPath = "/sys/class/graphics"
	sysInputPath    = "/sys/class/input"
	sysIIOPath      = "/sys/bus/iio/devices"

	standardGravity = 9.80665

	// evdev key codes for the joystick directions.
	keyUp    = 103
	keyDown  = 108
	keyLeft  = 105
	keyRight = 106
	keyEnter = 28

	evKey = 1

	// input_event on 64-bit: two 8-byte timeval words, type, code, value.
	inputEventSize = 24

	waitPollInterval = 10 * time.Millisecond
	textGlyphDelay   = 400 * time.Millisecond
)

// board drives real Sense HAT hardware through the kernel's framebuffer,
// IIO and evdev interfaces.
type board struct {
	fb       *os.File
	input    *os.File
	hts      iioDevice // HTS221: humidity + temperature
	lps      iioDevice // LPS25H: pressure + temperature
	accel    iioDevice // LSM9DS1 accelerometer
	mu       sync.Mutex
	rotation Rotation
}

type iioDevice struct {
	path string
}

// Open locates the Sense HAT devices and returns a handle to the board.
func Open() (Device, error) {
	errFactory := errors.New()

	fbPath, err := findFramebuffer()
	if err != nil {
		return nil, errFactory.Wrap(ErrDeviceUnavailable, err)
	}
	fb, err := os.OpenFile(fbPath, os.O_RDWR, 0)
	if err != nil {
		return nil, errFactory.Wrap(ErrDeviceUnavailable, err)
	}

	inputPath, err := findJoystick()
	if err != nil {
		fb.Close()
		return nil, errFactory.Wrap(ErrDeviceUnavailable, err)
	}
	input, err := os.OpenFile(inputPath, os.O_RDONLY, 0)
	if err != nil {
		fb.Close()
		return nil, errFactory.Wrap(ErrDeviceUnavailable, err)
	}
	if err := unix.SetNonblock(int(input.Fd()), true); err != nil {
		fb.Close()
		input.Close()
		return nil, errFactory.Wrap(ErrDeviceUnavailable, err)
	}

	b := &board{
		fb:    fb,
		input: input,
		hts:   findIIODevice("hts221"),
		lps:   findIIODevice("lps25h"),
		accel: findIIODevice("lsm9ds1_accel", "lsm9ds1-accel", "lsm9ds0_accel"),
	}

	logger.Debug().
		Str("framebuffer", fbPath).
		Str("joystick", inputPath).
		Str("hts221", b.hts.path).
		Str("lps25h", b.lps.path).
		Str("accelerometer", b.accel.path).
		Msg("Sense HAT devices detected")

	return b, nil
}

func findFramebuffer() (string, error) {
	matches, _ := filepath.Glob(filepath.Join(sysGraphicsPath, "fb*"))
	for _, dir := range matches {
		name, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(name)) == framebufferName {
			return "/dev/" + filepath.Base(dir), nil
		}
	}

	return "", errors.New().WithMessage(ErrDeviceUnavailable, "Sense HAT framebuffer not found")
}

func findJoystick() (string, error) {
	matches, _ := filepath.Glob(filepath.Join(sysInputPath, "event*"))
	for _, dir := range matches {
		name, err := os.ReadFile(filepath.Join(dir, "device", "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(name)) == joystickName {
			return "/dev/input/" + filepath.Base(dir), nil
		}
	}

	return "", errors.New().WithMessage(ErrDeviceUnavailable, "Sense HAT joystick not found")
}

// findIIODevice returns a handle to the first IIO device whose name file
// matches one of the candidates. A missing sensor yields an empty path;
// reads through it fail with ErrSensorRead at call time, not at open time,
// so a board with a dead sensor can still drive the display.
func findIIODevice(names ...string) iioDevice {
	matches, _ := filepath.Glob(filepath.Join(sysIIOPath, "iio:device*"))
	for _, dir := range matches {
		raw, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(raw))
		for _, candidate := range names {
			if name == candidate {
				return iioDevice{path: dir}
			}
		}
	}

	return iioDevice{}
}

func (d iioDevice) attr(name string) (float64, error) {
	if d.path == "" {
		return 0, errors.New().WithMessage(ErrSensorRead, "sensor not present")
	}
	raw, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		return 0, errors.New().Wrap(ErrSensorRead, err)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, errors.New().Wrap(ErrSensorRead, err)
	}

	return value, nil
}

// processed applies the IIO convention value = (raw + offset) * scale.
// The offset attribute is optional.
func (d iioDevice) processed(channel string) (float64, error) {
	raw, err := d.attr("in_" + channel + "_raw")
	if err != nil {
		return 0, err
	}
	offset, err := d.attr("in_" + channel + "_offset")
	if err != nil {
		offset = 0
	}
	scale, err := d.attr("in_" + channel + "_scale")
	if err != nil {
		return 0, err
	}

	return (raw + offset) * scale, nil
}

// Temperature reads from the humidity sensor, matching the board's
// reference stack where the plain temperature read is an alias for the
// humidity-derived one.
func (b *board) Temperature() (float64, error) {
	return b.TemperatureFromHumidity()
}

func (b *board) TemperatureFromHumidity() (float64, error) {
	milli, err := b.hts.processed("temp")
	if err != nil {
		return 0, err
	}
	return milli / 1000, nil
}

func (b *board) TemperatureFromPressure() (float64, error) {
	milli, err := b.lps.processed("temp")
	if err != nil {
		return 0, err
	}
	return milli / 1000, nil
}

func (b *board) Pressure() (float64, error) {
	kilo, err := b.lps.processed("pressure")
	if err != nil {
		return 0, err
	}
	// IIO reports kilopascal; the board's convention is hectopascal.
	return kilo * 10, nil
}

func (b *board) Humidity() (float64, error) {
	milli, err := b.hts.processed("humidityrelative")
	if err != nil {
		return 0, err
	}
	return milli / 1000, nil
}

func (b *board) Accelerometer() (Acceleration, error) {
	x, err := b.accel.processed("accel_x")
	if err != nil {
		return Acceleration{}, err
	}
	y, err := b.accel.processed("accel_y")
	if err != nil {
		return Acceleration{}, err
	}
	z, err := b.accel.processed("accel_z")
	if err != nil {
		return Acceleration{}, err
	}

	// IIO reports m/s^2; callers expect g units.
	return Acceleration{
		X: x / standardGravity,
		Y: y / standardGravity,
		Z: z / standardGravity,
	}, nil
}

func (b *board) SetRotation(r Rotation) error {
	if !r.IsValid() {
		return errors.New().WithData(ErrInvalidRotation, int(r))
	}
	b.mu.Lock()
	b.rotation = r
	b.mu.Unlock()

	return nil
}

func (b *board) DrawPixels(frame Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.writeFrame(frame)
}

// writeFrame serializes the frame as RGB565 in the current rotation and
// writes it to the framebuffer in one pwrite. Callers hold b.mu.
func (b *board) writeFrame(frame Frame) error {
	var buf [128]byte
	for i, c := range frame {
		pixel := rgb565(c)
		binary.LittleEndian.PutUint16(buf[rotateIndex(i, b.rotation)*2:], pixel)
	}

	if _, err := b.fb.WriteAt(buf[:], 0); err != nil {
		return errors.New().Wrap(ErrDisplayWrite, err)
	}

	return nil
}

func rgb565(c Color) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

// rotateIndex maps a logical row-major pixel index to the physical index
// under the given rotation.
func rotateIndex(i int, r Rotation) int {
	row, col := i/8, i%8
	switch r {
	case Rotate90:
		row, col = col, 7-row
	case Rotate180:
		row, col = 7-row, 7-col
	case Rotate270:
		row, col = 7-col, row
	}

	return row*8 + col
}

// ShowText walks the string one glyph at a time. The 8x8 matrix cannot
// hold more than one character, so each glyph is held briefly with a
// blank gap between repeats, the same presentation the board's stock
// scroller settles into for short numeric readouts.
func (b *board) ShowText(text string) error {
	for _, ch := range text {
		if err := b.ShowGlyph(ch, ColorOff); err != nil {
			return err
		}
		time.Sleep(textGlyphDelay)
	}

	return b.Clear()
}

func (b *board) ShowGlyph(ch rune, bg Color) error {
	bitmap, ok := glyph(ch)
	if !ok {
		bitmap, _ = glyph(glyphFallback)
	}

	var frame Frame
	for i := range frame {
		frame[i] = bg
	}
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			if bitmap[row]&(1<<(7-col)) != 0 {
				frame[row*8+col] = ColorWhite
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.writeFrame(frame)
}

func (b *board) Clear() error {
	return b.DrawPixels(Frame{})
}

// PollEvents drains all pending joystick events without blocking.
func (b *board) PollEvents() ([]Event, error) {
	var events []Event
	var buf [inputEventSize]byte
	for {
		n, err := b.input.Read(buf[:])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || os.IsTimeout(err) {
				return events, nil
			}
			return events, errors.New().Wrap(ErrInputFailed, err)
		}
		if n < inputEventSize {
			return events, nil
		}
		if event, ok := decodeInputEvent(buf); ok {
			events = append(events, event)
		}
	}
}

// WaitEvent blocks until the next joystick event arrives.
func (b *board) WaitEvent() (Event, error) {
	for {
		events, err := b.PollEvents()
		if err != nil {
			return Event{}, err
		}
		if len(events) > 0 {
			return events[0], nil
		}
		time.Sleep(waitPollInterval)
	}
}

func decodeInputEvent(buf [inputEventSize]byte) (Event, bool) {
	sec := int64(binary.LittleEndian.Uint64(buf[0:]))
	usec := int64(binary.LittleEndian.Uint64(buf[8:]))
	evType := binary.LittleEndian.Uint16(buf[16:])
	code := binary.LittleEndian.Uint16(buf[18:])
	value := int32(binary.LittleEndian.Uint32(buf[20:]))

	if evType != evKey {
		return Event{}, false
	}

	var direction Direction
	switch code {
	case keyUp:
		direction = DirectionUp
	case keyDown:
		direction = DirectionDown
	case keyLeft:
		direction = DirectionLeft
	case keyRight:
		direction = DirectionRight
	case keyEnter:
		direction = DirectionMiddle
	default:
		return Event{}, false
	}

	var action Action
	switch value {
	case 0:
		action = ActionReleased
	case 1:
		action = ActionPressed
	case 2:
		action = ActionHeld
	default:
		return Event{}, false
	}

	return Event{
		Timestamp: time.Unix(sec, usec*int64(time.Microsecond)),
		Direction: direction,
		Action:    action,
	}, true
}

func (b *board) Close() error {
	errFactory := errors.New()

	var firstErr error
	if err := b.Clear(); err != nil {
		firstErr = err
	}
	if err := b.fb.Close(); err != nil && firstErr == nil {
		firstErr = errFactory.Wrap(ErrDeviceClosed, err)
	}
	if err := b.input.Close(); err != nil && firstErr == nil {
		firstErr = errFactory.Wrap(ErrDeviceClosed, err)
	}

	return firstErr
}
