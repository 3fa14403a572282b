package commands

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/skythen/apdu"
	"github.com/spf13/cobra"

	"github.com/mwolff-dev/cardchannel/pkg/cvc"
	"github.com/mwolff-dev/cardchannel/pkg/securechannel"
	"github.com/mwolff-dev/cardchannel/pkg/transport"
)

func openCmd() *cobra.Command {
	var sendHex string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Run the mutual authentication and open a trusted channel",
		Long: `Open loads the host identity and trust anchors from the config file,
imports the card's certificate, runs the two-step GENERAL AUTHENTICATE
mutual authentication against the card in the configured reader and
reports the channel state. With --send, a hex-encoded command APDU is
transmitted through the secured channel afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			return runOpen(cfg, sendHex)
		},
	}

	cmd.Flags().StringVar(&sendHex, "send", "", "hex APDU (cla ins p1 p2 data) to send over the secured channel")
	return cmd
}

func runOpen(cfg *Config, sendHex string) error {
	factory := loggerFactory()
	log := factory.NewLogger("cli")

	// Trust anchors and validator.
	roots, err := loadCertificates(cfg.Trust.RootCertificateFiles)
	if err != nil {
		return err
	}
	validator, err := cvc.NewChainValidator(roots...)
	if err != nil {
		return err
	}

	// Host identity.
	key, err := cfg.loadPrivateKey()
	if err != nil {
		return err
	}
	hostCert, err := loadCertificate(cfg.Identity.CertificateFile)
	if err != nil {
		return err
	}
	subCA, err := loadCertificate(cfg.Identity.SubCACertificateFile)
	if err != nil {
		return err
	}
	identity, err := securechannel.NewIdentity(key, hostCert, subCA, validator)
	if err != nil {
		return err
	}

	// Card certificate.
	cardRaw, err := loadCertificate(cfg.Card.CertificateFile)
	if err != nil {
		return err
	}
	intermediates, err := loadCertificates(cfg.Card.IntermediateCertificateFiles)
	if err != nil {
		return err
	}
	intermediates = append(intermediates, subCA)

	peer, chain, err := securechannel.ImportPeerCertificate(cardRaw.Raw(), intermediates, validator)
	if err != nil {
		return err
	}
	log.Infof("card certificate %s trusted via %d-certificate chain", peer.Certificate().CHR, len(chain))

	// Transport.
	conn, err := transport.ConnectPCSC(transport.PCSCConfig{
		ReaderIndex:   cfg.ReaderIndex,
		LoggerFactory: factory,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	// Mutual authentication.
	engine := securechannel.NewEngine()
	handshake, err := securechannel.NewHandshake(securechannel.HandshakeConfig{
		Identity:      identity,
		Peer:          peer,
		Engine:        engine,
		LoggerFactory: factory,
	})
	if err != nil {
		return err
	}

	step1Resp, err := conn.Transmit(handshake.BuildStep1())
	if err != nil {
		return err
	}
	step2, err := handshake.Complete(step1Resp)
	if err != nil {
		return err
	}
	step2Resp, err := conn.Transmit(step2)
	if err != nil {
		return err
	}
	if !step2Resp.IsSuccess() {
		return fmt.Errorf("card rejected the host ephemeral key: SW %02X%02X", step2Resp.SW1, step2Resp.SW2)
	}

	fmt.Printf("trusted channel established with %s (reader %q)\n", peer.Certificate().CHR, conn.Reader())

	if sendHex == "" {
		return nil
	}

	capdu, err := parseHexAPDU(sendHex)
	if err != nil {
		return err
	}
	channel, err := securechannel.NewChannel(securechannel.ChannelConfig{
		Transmitter:   conn,
		Engine:        engine,
		LoggerFactory: factory,
	})
	if err != nil {
		return err
	}

	resp, err := channel.Transmit(capdu)
	if err != nil {
		return err
	}
	fmt.Printf("SW %02X%02X data %X\n", resp.SW1, resp.SW2, resp.Data)
	return nil
}

// parseHexAPDU decodes "cla ins p1 p2 [data...]" from a hex string.
func parseHexAPDU(s string) (apdu.Capdu, error) {
	raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if err != nil {
		return apdu.Capdu{}, fmt.Errorf("malformed hex APDU: %w", err)
	}
	if len(raw) < 4 {
		return apdu.Capdu{}, fmt.Errorf("APDU needs at least 4 header bytes, got %d", len(raw))
	}
	return apdu.Capdu{
		Cla:  raw[0],
		Ins:  raw[1],
		P1:   raw[2],
		P2:   raw[3],
		Data: raw[4:],
		Ne:   apdu.MaxLenResponseDataStandard,
	}, nil
}
