// Package api 處理 HTTP 請求路由和處理。
//
// REST 路由都在 /api 底下，聊天相關的路由需要登入；
// 即時訊息使用 /ws/chat/:room_id 的 WebSocket 連線。
package api
