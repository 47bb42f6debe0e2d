// Package api 暴露 REST 接口，供前端驱动小票识别、账单协商与
// 链上清算三个流程。
package api
