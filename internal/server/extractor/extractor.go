package extractor

import (
	"regexp"

	"github.com/gagliardetto/solana-go"
)

var solanaAddrRe = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{32,44}\b`)

// ContractAddress 从文本中提取出的合约地址，只能由 Extract 构造
type ContractAddress struct {
	value string
}

func (a ContractAddress) String() string {
	return a.value
}

// PublicKey 解码为 Solana 公钥；提取阶段不做校验，所以这里可能失败
func (a ContractAddress) PublicKey() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(a.value)
}

// Extract 返回文本中第一个符合 base58 公钥形状的子串。
// 没有匹配时返回 false，这是正常分支而不是错误
func Extract(text string) (ContractAddress, bool) {
	m := solanaAddrRe.FindString(text)
	if m == "" {
		return ContractAddress{}, false
	}
	return ContractAddress{value: m}, true
}
