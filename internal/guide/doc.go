// Package guide はGuide USB3サーマルカメラSDK（GuideUSB3LiveStream）のモデルとドライバーを提供する
//
// # 責務
// - SDKの戻り値・ビデオモード・接続状態・デバイス情報・フレームの型定義
// - SDK関数の呼び出しを抽象化する Driver インターフェース
// - ネイティブDLLをバインドする dll ドライバー（Windows/amd64のみ）
// - 実機なしで動作するシミュレーションドライバー
//
// # 仕様
//   - SDK関数は 1 (ERROR_NO) 以外を返すと *Error になる
//   - フレームコールバックはSDKのスレッドから呼ばれる。
//     コールバック内でデータはGoのスライスへコピーされる
//   - デバイス一覧は最大32台
package guide
