package token

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestDeployDataEmbedsConstructorArgs(t *testing.T) {
	supply := big.NewInt(1000)
	data, err := DeployData("MyToken", "MTK", supply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(data, Bytecode()) {
		t.Fatal("deploy data must start with the contract bytecode")
	}
	if len(data) <= len(Bytecode()) {
		t.Fatal("deploy data must append encoded constructor arguments")
	}
}

// 在模拟链上走完整的部署与转账链路：初始供应量铸给部署者，
// transfer 搬动余额并发事件，decimals 恒为 0。
func TestTokenLifecycleOnSimulatedBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	deployer := crypto.PubkeyToAddress(key.PublicKey)
	recipient := common.HexToAddress("0x2000000000000000000000000000000000000002")

	chainID := big.NewInt(1337)
	alloc := core.GenesisAlloc{
		deployer: {Balance: big.NewInt(1_000_000_000_000_000_000)},
	}
	backend := backends.NewSimulatedBackend(alloc, 8_000_000)
	t.Cleanup(func() { backend.Close() })

	signer := coretypes.LatestSignerForChainID(chainID)
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		t.Fatalf("latest header: %v", err)
	}
	gasTipCap := big.NewInt(1_000_000_000)
	gasFeeCap := new(big.Int).Add(head.BaseFee, gasTipCap)

	sendTx := func(nonce uint64, to *common.Address, gas uint64, data []byte) *coretypes.Receipt {
		t.Helper()
		tx := coretypes.NewTx(&coretypes.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: gasTipCap,
			GasFeeCap: gasFeeCap,
			Gas:       gas,
			To:        to,
			Data:      data,
		})
		signed, err := coretypes.SignTx(tx, signer, key)
		if err != nil {
			t.Fatalf("sign tx: %v", err)
		}
		if err := backend.SendTransaction(ctx, signed); err != nil {
			t.Fatalf("send tx: %v", err)
		}
		backend.Commit()
		receipt, err := backend.TransactionReceipt(ctx, signed.Hash())
		if err != nil {
			t.Fatalf("receipt: %v", err)
		}
		return receipt
	}

	deployData, err := DeployData("Demo", "DMO", big.NewInt(1000))
	if err != nil {
		t.Fatalf("deploy data: %v", err)
	}
	deployReceipt := sendTx(0, nil, 400_000, deployData)
	if deployReceipt.Status != coretypes.ReceiptStatusSuccessful {
		t.Fatal("deployment reverted")
	}
	contract := deployReceipt.ContractAddress
	if contract == (common.Address{}) {
		t.Fatal("expected non-zero contract address")
	}
	code, err := backend.CodeAt(ctx, contract, nil)
	if err != nil {
		t.Fatalf("code at: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("deployed contract has no runtime code")
	}

	balanceOf := func(account common.Address) *big.Int {
		t.Helper()
		callData, err := PackBalanceOf(account)
		if err != nil {
			t.Fatalf("pack balanceOf: %v", err)
		}
		output, err := backend.CallContract(ctx, gethcore.CallMsg{To: &contract, Data: callData}, nil)
		if err != nil {
			t.Fatalf("call balanceOf: %v", err)
		}
		balance, err := UnpackBalance(output)
		if err != nil {
			t.Fatalf("unpack balanceOf: %v", err)
		}
		return balance
	}

	if got := balanceOf(deployer); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected initial supply minted to deployer, got %s", got)
	}

	transferData, err := PackTransfer(recipient, big.NewInt(250))
	if err != nil {
		t.Fatalf("pack transfer: %v", err)
	}
	transferReceipt := sendTx(1, &contract, 100_000, transferData)
	if transferReceipt.Status != coretypes.ReceiptStatusSuccessful {
		t.Fatal("transfer reverted")
	}
	if len(transferReceipt.Logs) != 1 {
		t.Fatalf("expected one Transfer log, got %d", len(transferReceipt.Logs))
	}
	transferTopic := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	log := transferReceipt.Logs[0]
	if len(log.Topics) != 3 || log.Topics[0] != transferTopic {
		t.Fatalf("unexpected log topics %+v", log.Topics)
	}
	if common.BytesToAddress(log.Topics[1].Bytes()) != deployer || common.BytesToAddress(log.Topics[2].Bytes()) != recipient {
		t.Fatalf("unexpected Transfer participants %+v", log.Topics)
	}

	if got := balanceOf(deployer); got.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("expected sender balance 750, got %s", got)
	}
	if got := balanceOf(recipient); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("expected recipient balance 250, got %s", got)
	}

	decimalsOut, err := backend.CallContract(ctx, gethcore.CallMsg{To: &contract, Data: common.FromHex("0x313ce567")}, nil)
	if err != nil {
		t.Fatalf("call decimals: %v", err)
	}
	if new(big.Int).SetBytes(decimalsOut).Sign() != 0 {
		t.Fatalf("expected decimals 0, got %x", decimalsOut)
	}
	supplyOut, err := backend.CallContract(ctx, gethcore.CallMsg{To: &contract, Data: common.FromHex("0x18160ddd")}, nil)
	if err != nil {
		t.Fatalf("call totalSupply: %v", err)
	}
	if new(big.Int).SetBytes(supplyOut).Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected totalSupply 1000, got %x", supplyOut)
	}

	// 余额不足的转账必须回滚。
	overdraft, err := PackTransfer(deployer, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("pack transfer: %v", err)
	}
	if _, err := backend.CallContract(ctx, gethcore.CallMsg{From: recipient, To: &contract, Data: overdraft}, nil); err == nil {
		t.Fatal("expected transfer beyond balance to revert")
	}
}

func TestPackTransferSelector(t *testing.T) {
	to := common.HexToAddress("0x2000000000000000000000000000000000000002")
	data, err := PackTransfer(to, big.NewInt(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// transfer(address,uint256) 的标准选择器。
	if !bytes.Equal(data[:4], common.FromHex("0xa9059cbb")) {
		t.Fatalf("unexpected selector %x", data[:4])
	}
	if len(data) != 4+32+32 {
		t.Fatalf("unexpected calldata length %d", len(data))
	}
}

func TestBalanceOfRoundTrip(t *testing.T) {
	account := common.HexToAddress("0x1000000000000000000000000000000000000001")
	data, err := PackBalanceOf(account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data[:4], common.FromHex("0x70a08231")) {
		t.Fatalf("unexpected selector %x", data[:4])
	}

	// 模拟链上返回的 32 字节余额。
	want := big.NewInt(12345)
	output := common.LeftPadBytes(want.Bytes(), 32)
	got, err := UnpackBalance(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(want) != 0 {
		t.Fatalf("unexpected balance %s", got)
	}
}
