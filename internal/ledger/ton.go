package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"
)

// ConnectTON establishes a lite-server connection. With host+key set it
// connects to that server, otherwise it auto-discovers from the global
// config for the given network.
func ConnectTON(ctx context.Context, network, host string, port int, key string, log *zap.Logger) (ton.APIClientWrapped, error) {
	client := liteclient.NewConnectionPool()

	if host != "" && key != "" {
		addr := fmt.Sprintf("%s:%d", host, port)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, key); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		var configURL string
		switch strings.ToLower(network) {
		case "mainnet":
			configURL = "https://ton.org/global.config.json"
		default:
			configURL = "https://ton.org/testnet-global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", network))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	proofPolicy := ton.ProofCheckPolicyFast
	if strings.ToLower(network) == "mainnet" {
		proofPolicy = ton.ProofCheckPolicySecure
	}

	return ton.NewAPIClient(client, proofPolicy).WithRetry(), nil
}

// TONSender executes queued transfers from the escrow hot wallet.
type TONSender struct {
	w   *wallet.Wallet
	log *zap.Logger
}

// NewTONSender opens the hot wallet from its seed phrase (space-separated
// 24 words).
func NewTONSender(api ton.APIClientWrapped, seedPhrase string, log *zap.Logger) (*TONSender, error) {
	seed := strings.Fields(seedPhrase)
	if len(seed) == 0 {
		return nil, fmt.Errorf("empty hot wallet seed")
	}
	w, err := wallet.FromSeed(api, seed, wallet.V4R2)
	if err != nil {
		return nil, fmt.Errorf("open hot wallet: %w", err)
	}
	log.Info("hot wallet opened", zap.String("address", w.WalletAddress().String()))
	return &TONSender{w: w, log: log}, nil
}

// Send transfers amountNano to the destination with the given comment and
// returns the transaction hash once the message is accepted.
func (s *TONSender) Send(ctx context.Context, to string, amountNano int64, comment string) (string, error) {
	dst, err := address.ParseAddr(to)
	if err != nil {
		return "", fmt.Errorf("parse destination %q: %w", to, err)
	}

	body, err := wallet.CreateCommentCell(comment)
	if err != nil {
		return "", fmt.Errorf("build comment: %w", err)
	}

	msg := wallet.SimpleMessage(dst, tlb.FromNanoTON(big.NewInt(amountNano)), body)
	tx, _, err := s.w.SendWaitTransaction(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("send transfer: %w", err)
	}

	hash := hex.EncodeToString(tx.Hash)
	s.log.Info("transfer sent",
		zap.String("to", dst.String()),
		zap.Int64("amount_nano", amountNano),
		zap.String("tx_hash", hash),
	)
	return hash, nil
}
