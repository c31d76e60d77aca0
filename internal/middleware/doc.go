// Package middleware 提供了 HTTP 請求處理的中間件。
//
// Authenticate 從 Bearer token 或 session cookie 解析呼叫者身分，
// RequireAuth 拒絕未登入的請求，Logger 與 Metrics 記錄每個請求。
package middleware
