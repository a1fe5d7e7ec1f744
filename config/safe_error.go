package config

// SafeErrorMessage 生产环境（release 模式）下返回兜底文案，
// 不向客户端暴露内部错误详情；开发环境返回真实错误便于排查
func SafeErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if GlobalConfig != nil && GlobalConfig.Server.Mode == "release" {
		return fallback
	}
	return err.Error()
}
