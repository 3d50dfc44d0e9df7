package ops

import "encoding/json"

// 操作目录中的操作名。目录是封闭的，运行期不接受新增。
const (
	OpConnectWallet      = "connect_wallet"
	OpDisconnectWallet   = "disconnect_wallet"
	OpWalletAddress      = "wallet_address"
	OpGetBalance         = "get_balance"
	OpGetGasPrice        = "get_gas_price"
	OpGetBlockNumber     = "get_block_number"
	OpGetBlockLogs       = "get_block_logs"
	OpTransactionHistory = "get_transaction_history"
	OpSendETH            = "send_eth"
	OpSignMessage        = "sign_message"
	OpCreateToken        = "create_token"
	OpSendToken          = "send_token"
	OpBatchTransfer      = "batch_transfer"
	OpGetPrice           = "get_price"
	OpGetTrend           = "get_trend"
	OpFaucetInfo         = "faucet_info"
)

const emptySchema = `{"type":"object","properties":{},"additionalProperties":false}`

// NewCatalog 构建并填充完整的操作目录。任何注册失败都意味着目录
// 定义本身有编码错误，调用方应当视为启动失败。
func NewCatalog() (*Registry, error) {
	registry := NewRegistry()
	for _, desc := range catalog() {
		if err := registry.Register(desc); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func catalog() []Descriptor {
	return []Descriptor{
		{
			Name:        OpConnectWallet,
			Description: "绑定钱包私钥到当前会话并返回派生地址。后续需要签名的操作都使用这份凭证。",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"private_key": {"type": "string", "description": "十六进制私钥，可带 0x 前缀"}
				},
				"required": ["private_key"],
				"additionalProperties": false
			}`),
			Kind: KindConnectWallet,
		},
		{
			Name:        OpDisconnectWallet,
			Description: "清除当前会话的钱包凭证，幂等。",
			InputSchema: json.RawMessage(emptySchema),
			Kind:        KindDisconnectWallet,
		},
		{
			Name:            OpWalletAddress,
			Description:     "返回当前会话绑定的钱包地址。",
			InputSchema:     json.RawMessage(emptySchema),
			RequiresSession: true,
			Kind:            KindWalletAddress,
		},
		{
			Name:            OpGetBalance,
			Description:     "查询当前会话地址的原生币余额，以及本服务内已注册代币的余额。",
			InputSchema:     json.RawMessage(emptySchema),
			RequiresSession: true,
			Kind:            KindGetBalance,
		},
		{
			Name:        OpGetGasPrice,
			Description: "查询当前网络的 Gas 费率（EIP-1559 参数）。",
			InputSchema: json.RawMessage(emptySchema),
			Kind:        KindGetGasPrice,
		},
		{
			Name:        OpGetBlockNumber,
			Description: "查询最新区块高度。",
			InputSchema: json.RawMessage(emptySchema),
			Kind:        KindGetBlockNumber,
		},
		{
			Name:        OpGetBlockLogs,
			Description: "查询指定区块内产生的全部事件日志。",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"block_number": {"type": "integer", "minimum": 0, "description": "区块高度"}
				},
				"required": ["block_number"],
				"additionalProperties": false
			}`),
			Kind: KindGetBlockLogs,
		},
		{
			Name:        OpTransactionHistory,
			Description: "查询当前会话地址在最近若干区块内的交易，以及本服务记录的最近操作流水。",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"blocks": {"type": "integer", "minimum": 1, "maximum": 200, "description": "回看的区块数，默认 10"}
				},
				"additionalProperties": false
			}`),
			RequiresSession: true,
			Kind:            KindTransactionHistory,
		},
		{
			Name:        OpSendETH,
			Description: "向指定地址转账原生币，金额以 ETH 为单位的十进制字符串，等待上链后返回交易链接。",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"to": {"type": "string", "description": "收款地址"},
					"amount_eth": {"type": "string", "description": "转账金额（ETH）"}
				},
				"required": ["to", "amount_eth"],
				"additionalProperties": false
			}`),
			RequiresSession: true,
			Kind:            KindSendETH,
		},
		{
			Name:        OpSignMessage,
			Description: "用会话私钥对一段文本做 EIP-191 个人签名，返回十六进制签名。",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"message": {"type": "string", "description": "待签名文本"}
				},
				"required": ["message"],
				"additionalProperties": false
			}`),
			RequiresSession: true,
			Kind:            KindSignMessage,
		},
		{
			Name:        OpCreateToken,
			Description: "部署一个固定供应量的 ERC-20 代币并把符号登记到代币注册表。代币不做小数位缩放，数量即整枚数。",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "代币名称"},
					"symbol": {"type": "string", "description": "代币符号"},
					"initial_supply": {"type": "string", "description": "初始供应量（整数）"}
				},
				"required": ["name", "symbol", "initial_supply"],
				"additionalProperties": false
			}`),
			RequiresSession: true,
			Kind:            KindCreateToken,
		},
		{
			Name:        OpSendToken,
			Description: "转账一种已注册代币，数量为正整数（整枚数）。",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"symbol": {"type": "string", "description": "已注册的代币符号"},
					"to": {"type": "string", "description": "收款地址"},
					"amount": {"type": "string", "description": "转账数量（整数）"}
				},
				"required": ["symbol", "to", "amount"],
				"additionalProperties": false
			}`),
			RequiresSession: true,
			Kind:            KindSendToken,
		},
		{
			Name: OpBatchTransfer,
			Description: "批量转账。items 是空白分隔的指令串：原生币转账写 `ETH 收款地址 金额`，" +
				"代币转账写 `TOKEN 收款地址 数量 代币符号`，可以混排多项。全部校验通过后按序提交，逐项报告结果。",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"items": {"type": "string", "description": "批量转账指令串"}
				},
				"required": ["items"],
				"additionalProperties": false
			}`),
			RequiresSession: true,
			Kind:            KindBatchTransfer,
		},
		{
			Name:        OpGetPrice,
			Description: "查询代币的美元现价。",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"symbol": {"type": "string", "description": "代币符号，如 ETH"}
				},
				"required": ["symbol"],
				"additionalProperties": false
			}`),
			Kind: KindGetPrice,
		},
		{
			Name:        OpGetTrend,
			Description: "查询代币最近 24 小时的价格走势。",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"symbol": {"type": "string", "description": "代币符号，如 ETH"}
				},
				"required": ["symbol"],
				"additionalProperties": false
			}`),
			Kind: KindGetTrend,
		},
		{
			Name:        OpFaucetInfo,
			Description: "介绍测试网水龙头的领取方式。",
			InputSchema: json.RawMessage(emptySchema),
			Kind:        KindFaucetInfo,
		},
	}
}
