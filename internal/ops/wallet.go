package ops

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/session"
)

func (e *Executor) connectWallet(sess *session.Session, raw json.RawMessage) (result, error) {
	var args connectWalletArgs
	if err := decodeArgs(raw, &args); err != nil {
		return result{}, err
	}

	identity, err := sess.SetCredential(args.PrivateKey)
	if err != nil {
		return result{}, err
	}

	text := "钱包连接成功，地址: " + identity.Address.Hex()
	if link := e.explorer.AddressLink(identity.Address); link != "" {
		text += "\n浏览器: " + link
	}
	return result{text: text}, nil
}

func (e *Executor) disconnectWallet(sess *session.Session) (result, error) {
	sess.ClearCredential()
	return result{text: "钱包凭证已清除。"}, nil
}

func (e *Executor) walletAddress(sess *session.Session) (result, error) {
	identity, bound := sess.Identity()
	if !bound {
		return result{}, xerrors.New(xerrors.CodeNoSession, "当前会话未绑定钱包凭证")
	}
	return result{text: "当前钱包地址: " + identity.Address.Hex()}, nil
}

func (e *Executor) signMessage(sess *session.Session, raw json.RawMessage) (result, error) {
	var args signMessageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return result{}, err
	}
	if strings.TrimSpace(args.Message) == "" {
		return result{}, xerrors.New(xerrors.CodeInvalidArgument, "待签名文本不能为空")
	}

	key, bound := sess.Key()
	if !bound {
		return result{}, xerrors.New(xerrors.CodeNoSession, "当前会话未绑定钱包凭证")
	}

	digest := accounts.TextHash([]byte(args.Message))
	signature, err := crypto.Sign(digest, key)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "签名失败")
	}
	// 恢复标识按以太坊惯例偏移到 27/28。
	signature[crypto.RecoveryIDOffset] += 27

	return result{text: "签名完成。\n消息: " + args.Message + "\n签名: " + hexutil.Encode(signature)}, nil
}
