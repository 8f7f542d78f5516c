package logging

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// NewRunID 为一次同步运行生成唯一标识，串联同一轮的所有日志。
func NewRunID() string {
	return uuid.NewString()
}

// RunFields 提供 run_id/模式/缓存目录字段，供引擎各阶段日志复用。
func RunFields(runID, mode, cachePath string) logrus.Fields {
	return logrus.Fields{
		"run_id":     runID,
		"mode":       mode,
		"cache_path": cachePath,
	}
}

// ArtefactFields 描述单个制品的下载上下文。
func ArtefactFields(url, destination string, verified bool) logrus.Fields {
	return logrus.Fields{
		"url":         url,
		"destination": destination,
		"verified":    verified,
	}
}
