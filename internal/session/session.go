package session

import (
	"crypto/ecdsa"
	"strings"
	"sync"

	xerrors "ChainPilot/internal/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Identity 描述会话当前绑定的签名身份。
type Identity struct {
	Address common.Address
}

// Session 持有一个会话内至多一份已解锁的签名凭证。凭证只存在于内存中，
// 随会话结束一起销毁；同一会话内的操作串行执行，跨会话各自独立，
// 因此读写锁只用于防御边界上的误用，而不是并发协议的一部分。
type Session struct {
	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	address common.Address

	// exec 串行化同一会话内的操作执行。批量转账在开始时读取一次
	// 链上 nonce，并按位置预分配后续 nonce，若同一会话并发执行两个
	// 批次，二者读到的基准 nonce 会互相踩踏，所以同一会话同一时刻
	// 只允许一个操作在执行。
	exec sync.Mutex
}

// New 创建一个空会话。
func New() *Session {
	return &Session{}
}

// SetCredential 解析十六进制私钥并绑定到会话，替换任何已有凭证。
// 返回派生出的地址。
func (s *Session) SetCredential(material string) (Identity, error) {
	trimmed := strings.TrimSpace(material)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	if trimmed == "" {
		return Identity{}, xerrors.New(xerrors.CodeInvalidArgument, "私钥不能为空")
	}

	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return Identity{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "私钥格式无效")
	}

	address := crypto.PubkeyToAddress(key.PublicKey)

	s.mu.Lock()
	s.key = key
	s.address = address
	s.mu.Unlock()

	return Identity{Address: address}, nil
}

// ClearCredential 清除会话凭证，幂等。
func (s *Session) ClearCredential() {
	s.mu.Lock()
	s.key = nil
	s.address = common.Address{}
	s.mu.Unlock()
}

// Identity 返回当前绑定的身份；第二个返回值表示凭证是否存在。
func (s *Session) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return Identity{}, false
	}
	return Identity{Address: s.address}, true
}

// Key 返回当前的签名私钥；第二个返回值表示凭证是否存在。
func (s *Session) Key() (*ecdsa.PrivateKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, false
	}
	return s.key, true
}

// Lock 获取会话的执行锁。
func (s *Session) Lock() {
	s.exec.Lock()
}

// Unlock 释放会话的执行锁。
func (s *Session) Unlock() {
	s.exec.Unlock()
}
