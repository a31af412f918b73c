package loader

import (
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/siliconforge/dutlink/internal/config"
	"github.com/siliconforge/dutlink/pkg/console"
	"github.com/siliconforge/dutlink/pkg/transport"
)

// SPI NOR flash opcodes the ROM's EEPROM bootstrap protocol accepts.
const (
	opWriteEnable byte = 0x06
	opChipErase   byte = 0xC7
	opPageProgram byte = 0x02
	opReadStatus  byte = 0x05

	flashStatusBusy byte = 0x01
	flashPageSize        = 256
)

const (
	flashIdleTimeout  = 10 * time.Second
	flashPollInterval = 10 * time.Millisecond
)

// Bootstrap pushes a flash image to the DUT through the ROM's serial
// bootstrap: with the bootstrap strap applied and the target freshly reset,
// the ROM services EEPROM-protocol commands on the bootstrap SPI channel.
// The image is erased-then-programmed page by page, and the target is reset
// again to boot it.
func Bootstrap(sess *transport.Session, imagePath string) error {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("loader: bootstrapping %s: %w", imagePath, err)
	}

	return sess.WithStraps([]string{config.StrapRomBootstrap}, func() error {
		if err := sess.ResetTarget(bootstrapResetDelay, true); err != nil {
			return err
		}
		dev, err := sess.OpenSPI(config.ChannelBootstrap)
		if err != nil {
			return err
		}

		if err := flashErase(dev); err != nil {
			return fmt.Errorf("loader: bootstrapping %s: %w", imagePath, err)
		}
		if err := flashProgram(dev, image); err != nil {
			return fmt.Errorf("loader: bootstrapping %s: %w", imagePath, err)
		}
		glog.V(1).Infof("loader: bootstrapped %d bytes from %s", len(image), imagePath)

		// Boot the freshly written image.
		return sess.ResetTarget(bootstrapResetDelay, true)
	})
}

func flashCmd(dev console.SPIDevice, op byte) error {
	return dev.Transfer([]byte{op}, make([]byte, 1))
}

func flashErase(dev console.SPIDevice) error {
	if err := flashCmd(dev, opWriteEnable); err != nil {
		return err
	}
	if err := flashCmd(dev, opChipErase); err != nil {
		return err
	}
	return flashWaitIdle(dev)
}

func flashProgram(dev console.SPIDevice, image []byte) error {
	for off := 0; off < len(image); off += flashPageSize {
		end := off + flashPageSize
		if end > len(image) {
			end = len(image)
		}
		if err := flashCmd(dev, opWriteEnable); err != nil {
			return err
		}
		frame := []byte{opPageProgram, byte(off >> 16), byte(off >> 8), byte(off)}
		frame = append(frame, image[off:end]...)
		if err := dev.Transfer(frame, make([]byte, len(frame))); err != nil {
			return fmt.Errorf("programming page at 0x%06X: %w", off, err)
		}
		if err := flashWaitIdle(dev); err != nil {
			return err
		}
	}
	return nil
}

// flashWaitIdle polls the flash status register until the busy bit clears.
func flashWaitIdle(dev console.SPIDevice) error {
	deadline := time.Now().Add(flashIdleTimeout)
	for {
		rx := make([]byte, 2)
		if err := dev.Transfer([]byte{opReadStatus, 0}, rx); err != nil {
			return err
		}
		if rx[1]&flashStatusBusy == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("flash stayed busy for %s", flashIdleTimeout)
		}
		time.Sleep(flashPollInterval)
	}
}
