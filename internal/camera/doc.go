// Package camera カメラクライアントとストリームのライフサイクルを担う
//
// # 責務
// - SDKドライバーをスコープ付きリソースとして扱うクライアント
// - デバイス列挙からストリームのオープン・待機・クローズまでのセッション
// - フレームをMJPEGチャンネル毎の画像へ分割する
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - Guide USB3カメラからストリームを開きたい
// - 割り込みまでストリームを維持し、確実に後始末したい
// - フレームを画像として配信側（MJPEGサーバーやTUI）へ渡したい
//
// # 仕様
//   - Client.Open はSDKの Initialize、Client.Close は Exit を1回だけ呼ぶ
//   - Session.Run はストリームのオープンに失敗した場合、待機も CloseStream も行わない
//   - オープンに成功した場合、コンテキストのキャンセル（割り込み）で CloseStream を1回呼び、
//     エラーとしては扱わない
//   - デバイスインデックスが範囲外の場合は ErrDeviceIndex を返す
//   - チャンネル: "0"=RGB, "1"=X16/Y16, "2"=YUV, "3"=パラメータライン
//   - Thread-safe な操作をサポート
package camera
