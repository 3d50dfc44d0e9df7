package token

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// erc20ABI 是固定总量代币合约的接口描述。合约在构造时把全部初始供应量
// 铸给部署者，之后只支持 transfer / balanceOf 等标准入口；decimals 恒为 0，
// 因此所有数量都是整枚代币，链上不做任何小数位换算。名称与符号不上链，
// 由进程内的代币注册表维护，构造参数里的两个字符串仅保留在部署交易中。
const erc20ABI = `[
  {"inputs":[{"internalType":"string","name":"name_","type":"string"},{"internalType":"string","name":"symbol_","type":"string"},{"internalType":"uint256","name":"initialSupply_","type":"uint256"}],"stateMutability":"nonpayable","type":"constructor"},
  {"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"from","type":"address"},{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":false,"internalType":"uint256","name":"value","type":"uint256"}],"name":"Transfer","type":"event"},
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"pure","type":"function"},
  {"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"value","type":"uint256"}],"name":"transfer","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// erc20Bin 是手写汇编的最小代币合约，行为由模拟链上的部署回归测试
// 覆盖。存储布局：slot 0 存 totalSupply，slot 1 是 balances 映射
// （键为 keccak256(pad32(addr) . pad32(1))，与 Solidity 映射一致）。
//
// 构造段（0x2a 字节）：构造参数按 (string,string,uint256) 编码拼在
// 整段创建代码之后，initialSupply_ 是头部的第三个字，位于代码内
// 固定偏移 0x16c（0x2a + 0x102 + 0x40）。构造段把它写入 slot 0、
// 把全部供应量记到部署者名下，然后返回 0x102 字节的运行时代码。
//
// 运行时按选择器分发四个入口：
//   0x70a08231 balanceOf(address)        读映射返回余额
//   0xa9059cbb transfer(address,uint256) 余额不足即回滚，成功后发
//                                        Transfer 事件并返回 true
//   0x18160ddd totalSupply()             返回 slot 0
//   0x313ce567 decimals()                恒返回 0
// 其余调用一律回滚。
const erc20Bin = "0x602061016c6000396000518060005533600052600160205260406000205561010280602a6000396000f3" +
	"6004361060355760003560e01c806370a0823114603a578063a9059cbb14606b57806318160ddd1460e9578063313ce5671460f657" +
	"5b600080fd" +
	"5b5060043573ffffffffffffffffffffffffffffffffffffffff16600052600160205260406000205460005260206000f3" +
	"5b5060043573ffffffffffffffffffffffffffffffffffffffff16602435336000526001602052604060002080548281106035578290039055816000526040600020805482019055806000528133" +
	"7fddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef60206000a3600160005260206000f3" +
	"5b5060005460005260206000f3" +
	"5b50600060005260206000f3"

var (
	parseOnce sync.Once
	parsed    abi.ABI
	parseErr  error
)

// ABI 返回解析后的合约接口。
func ABI() (abi.ABI, error) {
	parseOnce.Do(func() {
		parsed, parseErr = abi.JSON(strings.NewReader(erc20ABI))
	})
	if parseErr != nil {
		return abi.ABI{}, fmt.Errorf("解析 ERC20 ABI 失败: %w", parseErr)
	}
	return parsed, nil
}

// Bytecode 返回合约的部署字节码。
func Bytecode() []byte {
	return common.FromHex(erc20Bin)
}

// DeployData 生成部署交易的 calldata：字节码后拼接 ABI 编码的构造参数。
func DeployData(name, symbol string, initialSupply *big.Int) ([]byte, error) {
	contractABI, err := ABI()
	if err != nil {
		return nil, err
	}
	args, err := contractABI.Pack("", name, symbol, initialSupply)
	if err != nil {
		return nil, fmt.Errorf("编码构造参数失败: %w", err)
	}
	return append(Bytecode(), args...), nil
}

// PackTransfer 生成 transfer(recipient, amount) 的 calldata。
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	contractABI, err := ABI()
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("编码 transfer 调用失败: %w", err)
	}
	return data, nil
}

// PackBalanceOf 生成 balanceOf(account) 的 calldata。
func PackBalanceOf(account common.Address) ([]byte, error) {
	contractABI, err := ABI()
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("编码 balanceOf 调用失败: %w", err)
	}
	return data, nil
}

// UnpackBalance 解析 balanceOf 的返回值。
func UnpackBalance(output []byte) (*big.Int, error) {
	contractABI, err := ABI()
	if err != nil {
		return nil, err
	}
	values, err := contractABI.Unpack("balanceOf", output)
	if err != nil {
		return nil, fmt.Errorf("解析 balanceOf 返回值失败: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf 返回值数量异常: %d", len(values))
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf 返回值类型异常: %T", values[0])
	}
	return balance, nil
}
