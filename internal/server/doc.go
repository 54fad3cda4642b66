// Package server は、MJPEG配信と管理APIのHTTPサーバーを提供します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - チャンネル毎のMJPEGストリームとスナップショットの配信
//   - カメラ状態の参照とパレット変更のAPI
//   - Prometheusメトリクスの公開
//
// 仕様:
//   - ルーティングはginを使用
//   - ストリームは multipart/x-mixed-replace（境界 mjpegboundary）
//   - "/" と "/stream" はクエリ channel, quality, delay(ミリ秒) を受け付ける
//   - /api のリクエストは埋め込みの openapi.yaml で検証する（kin-openapi）
//   - API定義は /api/openapi.yaml で参照できる
//   - 複数クライアントの同時接続をサポート
package server
