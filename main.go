package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/trafficlight"
	"github.com/tsinghua-fib-lab/microtraffic-go/task"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"gopkg.in/yaml.v2"
)

var (
	// 分布式模式syncer地址，如果设置为空则激活独立部署模式
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	// 模拟任务名
	job = flag.String("job", "job0", "the name of the whole simulation task")
	// 本程序监听的gRPC地址
	grpcAddr = flag.String("listen", ":51102", "gRPC listening address")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 每步输出信号灯状态
	recordLights = flag.Bool("record.lights", false, "log traffic light snapshots every step")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log       = logrus.WithField("module", "microtraffic")
	recordLog = logrus.WithField("module", "record")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}

	c, err := loadConfig()
	if err != nil {
		log.Panicf("config load err: %v", err)
	}
	log.Infof("road %d: length=%.1f lanes=%d lights=%d vehicle types=%d",
		c.Road.ID, c.Road.Length, c.Road.Lanes, len(c.Road.TrafficLights), len(c.VehicleTypes))

	var record trafficlight.RecordFunc
	if *recordLights {
		record = logLights
	}
	sidecar := syncer.NewSidecar(task.SelfName, *grpcAddr, *syncerAddr)
	t, err := task.NewContext(*job, c, sidecar, true, record)
	if err != nil {
		log.Panicf("%v", err)
	}
	t.Run()

	stats := t.Segment().Statistics()
	log.Infof("completed=%d travel_time=%.1fs travel_distance=%.1fm",
		stats.NumCompletedTrips, stats.TravelTime, stats.TravelDistance)
}

// loadConfig 从-config文件或-config-data读取yaml配置，未知字段视为错误
func loadConfig() (config.Config, error) {
	var c config.Config
	var file []byte
	var err error
	switch {
	case *configPath != "":
		file, err = os.ReadFile(*configPath)
	case *configData != "":
		file, err = base64.StdEncoding.DecodeString(*configData)
	default:
		return c, fmt.Errorf("config file or config data must be specified")
	}
	if err != nil {
		return c, err
	}
	err = yaml.UnmarshalStrict(file, &c)
	return c, err
}

// logLights 每步输出全部信号灯状态
func logLights(simulationTime float64, iteration int64, lights []trafficlight.LightSnapshot) {
	for _, l := range lights {
		recordLog.Infof("t=%.2f step=%d light=%d phase=%s remaining=%.2f",
			simulationTime, iteration, l.ID, l.Phase, l.RemainingTime)
	}
}
