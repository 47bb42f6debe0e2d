package payment

import "errors"

// ErrCredentialNotFound 表示参与方没有配置链上凭证。
var ErrCredentialNotFound = errors.New("未配置该参与方的支付凭证")

// Registry 按参与方序号保存支付凭证。凭证在启动装配阶段一次性
// 注入，运行中不再读取任何环境变量。
type Registry struct {
	creds map[int]Credential
}

// NewRegistry 创建凭证注册表。
func NewRegistry(creds []Credential) *Registry {
	set := make(map[int]Credential, len(creds))
	for _, cred := range creds {
		if cred.Ordinal > 0 {
			set[cred.Ordinal] = cred
		}
	}
	return &Registry{creds: set}
}

// Resolve 按序号查找参与方的凭证。
func (r *Registry) Resolve(ordinal int) (Credential, error) {
	if r == nil {
		return Credential{}, ErrCredentialNotFound
	}
	cred, ok := r.creds[ordinal]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	return cred, nil
}
