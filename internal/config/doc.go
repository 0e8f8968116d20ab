// Package config 负责加载服务的 JSON 配置，补齐默认值与环境变量，并向插件
// 暴露 Settings 接口。
package config
