package xerr

const (
	SERVER_COMMON_ERROR = 100001
	REQUEST_PARAM_ERROR = 100002
	DB_ERROR            = 100004
	DB_TX_ERROR         = 100005 // 事务提交/回滚失败

	ErrInternalServer = 500

	ErrBadRequest       = 1000
	ErrInvalidInput     = 1001 // 字段校验失败，如 permalink 重复
	ErrMissingParameter = 1002 // 必填字段为空

	ErrNotFound         = 1300
	ErrResourceNotFound = 1301
)
